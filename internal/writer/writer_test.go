package writer

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSink struct {
	mu   sync.Mutex
	got  [][]byte
	fail bool
}

func (s *recordingSink) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errFail
	}
	s.got = append(s.got, append([]byte(nil), b...))
	return nil
}

var errFail = bytesErr("sink failed")

type bytesErr string

func (e bytesErr) Error() string { return string(e) }

func (s *recordingSink) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.got...)
}

func TestWriterDeliversInOrder(t *testing.T) {
	w := New(8, zerolog.Nop())
	defer w.Close()
	sink := &recordingSink{}
	w.SetSink(sink)

	for i := 0; i < 5; i++ {
		if err := w.Write(context.Background(), []byte{byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.snapshot()) == 5 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	got := sink.snapshot()
	if len(got) != 5 {
		t.Fatalf("got %d frames, want 5", len(got))
	}
	for i, b := range got {
		if !bytes.Equal(b, []byte{byte(i)}) {
			t.Fatalf("frame %d out of order: %v", i, b)
		}
	}
}

func TestWriterBackpressureCancel(t *testing.T) {
	w := New(1, zerolog.Nop())
	defer w.Close()
	// No sink installed: ring fills and stays full.
	if err := w.Write(context.Background(), []byte("a")); err != nil {
		t.Fatalf("first write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Write(ctx, []byte("b"))
	if err != ErrCanceled {
		t.Fatalf("got %v, want ErrCanceled", err)
	}
	if w.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 (canceled write must not be queued)", w.Pending())
	}
}

func TestWriterSurvivesSinkSwap(t *testing.T) {
	w := New(8, zerolog.Nop())
	defer w.Close()

	failing := &recordingSink{fail: true}
	w.SetSink(failing)
	if err := w.Write(context.Background(), []byte("queued")); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(20 * time.Millisecond) // let the drain loop attempt and fail

	good := &recordingSink{}
	w.SetSink(good)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(good.snapshot()) == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	got := good.snapshot()
	if len(got) != 1 || string(got[0]) != "queued" {
		t.Fatalf("frame did not survive sink swap: %v", got)
	}
}
