package subs

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adred-codev/natscore/internal/wire"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames [][]byte
}

func (w *fakeWriter) Write(_ context.Context, frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, append([]byte(nil), frame...))
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

type collectingSink struct {
	mu  sync.Mutex
	got []*wire.Frame
}

func (s *collectingSink) Deliver(f *wire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, f)
}

func (s *collectingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestSIDsMonotonicallyIncrease(t *testing.T) {
	r := New(0, zerolog.Nop())
	w := &fakeWriter{}
	var last int64
	for i := 0; i < 10; i++ {
		h, err := r.Subscribe(context.Background(), w, "foo", "", 0, &collectingSink{})
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if h.SID() <= last {
			t.Fatalf("sid %d not strictly increasing after %d", h.SID(), last)
		}
		last = h.SID()
	}
}

func TestDeliverRoutesBySID(t *testing.T) {
	r := New(0, zerolog.Nop())
	w := &fakeWriter{}
	sink := &collectingSink{}
	h, err := r.Subscribe(context.Background(), w, "foo", "", 0, sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r.Deliver(context.Background(), w, &wire.Frame{Op: wire.OpMsg, SID: h.SID(), Payload: []byte("x")})
	if sink.len() != 1 {
		t.Fatalf("sink received %d messages, want 1", sink.len())
	}
}

func TestMaxMsgsAutoUnsub(t *testing.T) {
	r := New(0, zerolog.Nop())
	w := &fakeWriter{}
	sink := &collectingSink{}
	h, err := r.Subscribe(context.Background(), w, "foo", "", 2, sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 2; i++ {
		r.Deliver(context.Background(), w, &wire.Frame{Op: wire.OpMsg, SID: h.SID()})
	}
	if r.Count() != 0 {
		t.Fatalf("registry still holds subscription after max-msgs reached")
	}
}

func TestRemoveBeforeRegistrationIsSafe(t *testing.T) {
	// Exercises spec.md §9's Open Question: remove() must be a silent
	// no-op when called on a SID that was never (or no longer) registered.
	r := New(0, zerolog.Nop())
	r.remove(999)
	r.remove(999)
}

func TestReplayReissuesSubAndRemainingUnsub(t *testing.T) {
	r := New(0, zerolog.Nop())
	w := &fakeWriter{}
	sink := &collectingSink{}
	h, err := r.Subscribe(context.Background(), w, "foo", "", 5, sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	r.Deliver(context.Background(), w, &wire.Frame{Op: wire.OpMsg, SID: h.SID()})
	r.Deliver(context.Background(), w, &wire.Frame{Op: wire.OpMsg, SID: h.SID()})

	before := w.count()
	if err := r.Replay(context.Background(), w); err != nil {
		t.Fatalf("replay: %v", err)
	}
	after := w.count()
	if after-before != 2 { // SUB + UNSUB(remaining=3)
		t.Fatalf("replay emitted %d frames, want 2", after-before)
	}
}
