package nats

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adred-codev/natscore/internal/wire"
)

func recvFrame(t *testing.T, sink *fakeSink) *wire.Frame {
	t.Helper()
	select {
	case raw := <-sink.frames:
		dec := wire.NewDecoder()
		dec.Feed(raw)
		f, err := dec.Next()
		if err != nil {
			t.Fatalf("decode captured frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestPublishEncodesPub(t *testing.T) {
	c, sink := newTestConn(t)
	if err := c.Publish(context.Background(), "foo.bar", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	f := recvFrame(t, sink)
	if f.Op != wire.OpPub || f.Subject != "foo.bar" || !bytes.Equal(f.Payload, []byte("hello")) {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestPublishMsgWithHeadersEncodesHPub(t *testing.T) {
	c, sink := newTestConn(t)
	h := NewHeader()
	h.Set("X-Trace", "abc")
	if err := c.PublishMsg(context.Background(), &Msg{Subject: "foo", Header: h, Data: []byte("x")}); err != nil {
		t.Fatalf("publishmsg: %v", err)
	}
	f := recvFrame(t, sink)
	if f.Op != wire.OpHMsg && f.Op != wire.OpHPub {
		t.Fatalf("expected HPUB-derived frame, got %s", f.Op)
	}
	if f.Header == nil || f.Header.Get("X-Trace") != "abc" {
		t.Fatalf("header not round-tripped: %+v", f.Header)
	}
}

func TestPublishEmptyPayloadIsValid(t *testing.T) {
	c, sink := newTestConn(t)
	if err := c.Publish(context.Background(), "foo", nil); err != nil {
		t.Fatalf("publish empty payload: %v", err)
	}
	f := recvFrame(t, sink)
	if len(f.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(f.Payload))
	}
}

func TestPublishRejectsEmptySubject(t *testing.T) {
	c, _ := newTestConn(t)
	err := c.Publish(context.Background(), "", []byte("x"))
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Kind != KindUsage {
		t.Fatalf("expected KindUsage, got %v", err)
	}
}

func TestPublishEnforcesMaxPayload(t *testing.T) {
	c, _ := newTestConn(t)
	c.mu.Lock()
	c.info.MaxPayload = 4
	c.mu.Unlock()

	err := c.Publish(context.Background(), "foo", []byte("12345"))
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Kind != KindPayloadTooLarge {
		t.Fatalf("expected KindPayloadTooLarge, got %v", err)
	}
}
