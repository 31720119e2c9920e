package inbox

import (
	"testing"
	"time"

	"github.com/adred-codev/natscore/internal/wire"
)

func TestMuxRoutesByFinalToken(t *testing.T) {
	m := New(NewPrefix())
	subject := m.Subject()
	w := m.Register(subject)

	m.Dispatch(&wire.Frame{Subject: subject, Payload: []byte("hi")})

	select {
	case f := <-w.C():
		if string(f.Payload) != "hi" {
			t.Fatalf("payload = %q, want hi", f.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestMuxOneShot(t *testing.T) {
	m := New(NewPrefix())
	subject := m.Subject()
	m.Register(subject)

	m.Dispatch(&wire.Frame{Subject: subject})
	if m.Len() != 0 {
		t.Fatalf("waiter still registered after firing")
	}
	// A second dispatch for the same (now-removed) subject must not panic
	// or block.
	m.Dispatch(&wire.Frame{Subject: subject})
}

func TestMuxCancelRemovesWaiter(t *testing.T) {
	m := New(NewPrefix())
	subject := m.Subject()
	w := m.Register(subject)
	w.Cancel()
	if m.Len() != 0 {
		t.Fatalf("waiter still present after Cancel")
	}
}

func TestMuxUnmatchedSubjectIsDropped(t *testing.T) {
	m := New(NewPrefix())
	m.Dispatch(&wire.Frame{Subject: m.prefix + "never-registered"})
}
