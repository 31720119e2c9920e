// Package writer implements the command writer: it serializes outbound
// frames from many producer goroutines onto a single transport, applying
// backpressure when the ring fills and surviving a transport swap across
// reconnects (spec.md §4.3).
package writer

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrCanceled is returned to a producer whose Write was aborted via its
// context before the frame committed to the ring.
var ErrCanceled = errors.New("writer: canceled before commit")

// ErrClosed is returned once the writer has been permanently closed.
var ErrClosed = errors.New("writer: closed")

// Sink is the minimal transport surface the writer drains into. Swapping
// sinks (on reconnect) is done via SetSink while the writer keeps running.
type Sink interface {
	Write(b []byte) error
}

// Writer is a bounded ring of pending frames drained by one internal
// goroutine into the current Sink. Producers enqueue whole frames;
// partially-sent bytes at a transport boundary are never possible because
// each ring entry is written to the sink in one call.
type Writer struct {
	log zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	ring   [][]byte
	cap    int
	closed bool
	sink   Sink

	drainWake chan struct{}
}

// New creates a Writer with the given ring capacity (number of buffered
// frames, not bytes — matching spec.md §4.3's "bounded ring of byte
// buffers").
func New(capacity int, log zerolog.Logger) *Writer {
	if capacity <= 0 {
		capacity = 256
	}
	w := &Writer{
		log:       log,
		cap:       capacity,
		drainWake: make(chan struct{}, 1),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.drainLoop()
	return w
}

// SetSink installs the current transport. Bytes already queued but not yet
// written survive the swap; an entry that had only partially crossed the
// wire boundary is impossible by construction (see Write), so nothing is
// discarded beyond what spec.md §4.3 allows.
func (w *Writer) SetSink(sink Sink) {
	w.mu.Lock()
	w.sink = sink
	w.mu.Unlock()
	w.wakeDrain()
}

// Write enqueues a fully-formed frame. It blocks while the ring is full,
// honoring ctx for cancellation. If ctx is canceled before the frame is
// committed to the ring, Write returns ErrCanceled and nothing is queued.
// Once committed, the frame will reach the wire (or the writer closes) --
// cancellation after commit does not retract it, matching spec.md §5's "no
// torn frames" rule.
func (w *Writer) Write(ctx context.Context, frame []byte) error {
	w.mu.Lock()
	for len(w.ring) >= w.cap && !w.closed {
		if ctx != nil && ctx.Err() != nil {
			w.mu.Unlock()
			return ErrCanceled
		}
		if !w.waitOrCancel(ctx) {
			w.mu.Unlock()
			return ErrCanceled
		}
	}
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}

	w.ring = append(w.ring, append([]byte(nil), frame...))
	w.mu.Unlock()
	w.wakeDrain()
	return nil
}

// waitOrCancel waits on cond until woken or ctx is done, returning false if
// ctx fired first. Caller holds w.mu on entry and on return.
func (w *Writer) waitOrCancel(ctx context.Context) bool {
	if ctx == nil {
		w.cond.Wait()
		return true
	}

	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(done)
		w.cond.Broadcast()
	})
	defer stop()

	w.cond.Wait()

	select {
	case <-done:
		return false
	default:
		return ctx.Err() == nil
	}
}

func (w *Writer) wakeDrain() {
	select {
	case w.drainWake <- struct{}{}:
	default:
	}
}

func (w *Writer) drainLoop() {
	for range w.drainWake {
		w.drainOnce()
	}
}

func (w *Writer) drainOnce() {
	for {
		w.mu.Lock()
		if w.closed || w.sink == nil || len(w.ring) == 0 {
			w.mu.Unlock()
			return
		}
		frame := w.ring[0]
		sink := w.sink
		w.mu.Unlock()

		if err := sink.Write(frame); err != nil {
			w.log.Debug().Err(err).Msg("writer: sink write failed, frame stays queued for next sink")
			return
		}

		w.mu.Lock()
		w.ring = w.ring[1:]
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

// Pending returns the number of frames still queued (observability only).
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ring)
}

// Close stops the writer permanently, unblocking any waiting producers with
// ErrClosed/ErrCanceled.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	close(w.drainWake)
	w.cond.Broadcast()
}

// Coalesce merges several frames into one contiguous byte slice, so a burst
// of frames can be enqueued as a single ring entry. Nothing in this module
// calls it; subs.Registry.Replay writes each SUB/UNSUB frame separately.
func Coalesce(frames ...[]byte) []byte {
	return bytes.Join(frames, nil)
}
