package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adred-codev/natscore/internal/wire"
)

func TestSubscribeSyncDeliversViaNextMsg(t *testing.T) {
	c, sink := newTestConn(t)
	sub, err := c.SubscribeSync("foo")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvFrame(t, sink) // SUB frame

	c.dispatch(&wire.Frame{Op: wire.OpMsg, Subject: "foo", SID: sub.handle.SID(), Payload: []byte("hi")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.NextMsg(ctx)
	if err != nil {
		t.Fatalf("nextmsg: %v", err)
	}
	if string(msg.Data) != "hi" {
		t.Fatalf("got %q, want %q", msg.Data, "hi")
	}
}

func TestSubscribeAsyncInvokesCallback(t *testing.T) {
	c, sink := newTestConn(t)
	got := make(chan string, 1)
	sub, err := c.Subscribe("foo", func(m *Msg) { got <- string(m.Data) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvFrame(t, sink)

	c.dispatch(&wire.Frame{Op: wire.OpMsg, Subject: "foo", SID: sub.handle.SID(), Payload: []byte("hi")})

	select {
	case v := <-got:
		if v != "hi" {
			t.Fatalf("got %q, want %q", v, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("callback never invoked")
	}
}

func TestQueueSubscribeRejectsInboxSubject(t *testing.T) {
	c, _ := newTestConn(t)
	inboxSubject := c.mux.Subject()
	_, err := c.QueueSubscribe(inboxSubject, "workers", func(*Msg) {})
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Kind != KindUsage {
		t.Fatalf("expected KindUsage, got %v", err)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	c, sink := newTestConn(t)
	sub, err := c.SubscribeSync("foo")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvFrame(t, sink)

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	recvFrame(t, sink) // UNSUB frame

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe should be a no-op, got: %v", err)
	}
}
