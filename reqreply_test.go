package nats

import (
	"context"
	"testing"
	"time"

	"github.com/adred-codev/natscore/internal/wire"
)

func TestRequestCorrelatesReplyByInboxToken(t *testing.T) {
	c, sink := newTestConn(t)

	type result struct {
		msg *Msg
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.Request(context.Background(), "svc.ping", []byte("ping"))
		done <- result{msg, err}
	}()

	f := recvFrame(t, sink)
	if f.Op != wire.OpPub || f.Subject != "svc.ping" || f.ReplySubject == "" {
		t.Fatalf("unexpected request frame: %+v", f)
	}

	c.dispatch(&wire.Frame{Op: wire.OpMsg, Subject: f.ReplySubject, Payload: []byte("pong")})

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("request: %v", r.err)
		}
		if string(r.msg.Data) != "pong" {
			t.Fatalf("got %q, want %q", r.msg.Data, "pong")
		}
	case <-time.After(time.Second):
		t.Fatal("request never returned")
	}
}

func TestRequestTimesOutWithoutReply(t *testing.T) {
	c, sink := newTestConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, "svc.ping", []byte("ping"))
	recvFrame(t, sink)

	nerr, ok := err.(*Error)
	if !ok || nerr.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
}

func TestRequestNoRespondersStatus(t *testing.T) {
	c, sink := newTestConn(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), "svc.ping", []byte("ping"))
		done <- err
	}()

	f := recvFrame(t, sink)
	c.dispatch(&wire.Frame{Op: wire.OpMsg, Subject: f.ReplySubject, Status: wire.StatusNoResponders})

	select {
	case err := <-done:
		nerr, ok := err.(*Error)
		if !ok || nerr.Kind != KindTransport {
			t.Fatalf("expected KindTransport for no-responders, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("request never returned")
	}
}
