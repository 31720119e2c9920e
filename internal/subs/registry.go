// Package subs implements the subscription registry: SID assignment,
// delivery dispatch, and reconnect replay (spec.md §4.4).
package subs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/natscore/internal/wire"
)

// Sink receives delivered messages for one subscription. The registry holds
// sinks behind a Handle so a caller that drops its last reference is
// detected without a language-level garbage collector (spec.md §9).
type Sink interface {
	Deliver(msg *wire.Frame)
}

// Handle is an explicit, droppable registration. Removal always goes
// through Registry.Remove, which owns emitting the wire UNSUB; Handle
// itself carries no removal method to avoid a second, UNSUB-less path.
type Handle struct {
	registry *Registry
	sid      int64
}

// SID returns the assigned subscription id.
func (h *Handle) SID() int64 { return h.sid }

type entry struct {
	sid       int64
	subject   string
	queue     string
	maxMsgs   int64 // <=0 means unlimited
	delivered int64
	sink      Sink
	alive     bool // false once the sink side has released
}

// FrameWriter is the minimal surface the registry needs to emit SUB/UNSUB
// lines; satisfied by writer.Writer.
type FrameWriter interface {
	Write(ctx context.Context, frame []byte) error
}

// Registry maps SIDs to subscription state for one connection lifetime.
// SIDs are monotonic and never reused within that lifetime (spec.md §8).
type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	nextSID int64
	byID    map[int64]*entry

	sweepInterval time.Duration
	stopSweep     chan struct{}
}

// New creates an empty Registry. sweepInterval <= 0 disables the periodic
// sweep (the explicit Remove/Handle path is sufficient in a GC-less
// design; the sweep is retained only as a defense against leaked handles,
// per spec.md §9).
func New(sweepInterval time.Duration, log zerolog.Logger) *Registry {
	r := &Registry{
		log:           log,
		byID:          make(map[int64]*entry),
		sweepInterval: sweepInterval,
	}
	if sweepInterval > 0 {
		r.stopSweep = make(chan struct{})
		go r.sweepLoop()
	}
	return r
}

// Subscribe assigns the next SID, registers sink, and issues SUB over w.
// The caller is responsible for awaiting any broker acknowledgement
// barrier; Subscribe itself only performs registration + wire send.
func (r *Registry) Subscribe(ctx context.Context, w FrameWriter, subject, queue string, maxMsgs int64, sink Sink) (*Handle, error) {
	r.mu.Lock()
	r.nextSID++
	sid := r.nextSID
	e := &entry{sid: sid, subject: subject, queue: queue, maxMsgs: maxMsgs, sink: sink, alive: true}
	r.byID[sid] = e
	r.mu.Unlock()

	if err := w.Write(ctx, wire.EncodeSub(subject, queue, sid)); err != nil {
		// Subscribe was canceled (or the writer closed) before the wire
		// commit landed: remove the registration. Safe even if it was
		// never fully registered -- matches the "newer" SubscriptionManager
		// behavior from spec.md §9's Open Question: remove is idempotent
		// and silent when there is nothing to remove.
		r.remove(sid)
		return nil, err
	}

	return &Handle{registry: r, sid: sid}, nil
}

// Deliver routes an inbound MSG/HMSG frame to its sink. If the sink side
// has already released, it lazily issues UNSUB for that SID and logs,
// rather than failing the read path.
func (r *Registry) Deliver(ctx context.Context, w FrameWriter, f *wire.Frame) {
	r.mu.Lock()
	e, ok := r.byID[f.SID]
	if !ok || !e.alive {
		r.mu.Unlock()
		if ok {
			r.log.Debug().Int64("sid", f.SID).Msg("subs: delivery to dead sink, issuing lazy UNSUB")
			_ = w.Write(ctx, wire.EncodeUnsub(f.SID, -1))
		}
		return
	}
	e.delivered++
	exceeded := e.maxMsgs > 0 && e.delivered >= e.maxMsgs
	sink := e.sink
	r.mu.Unlock()

	sink.Deliver(f)

	if exceeded {
		r.remove(f.SID)
	}
}

// remove is best-effort and idempotent: safe when Subscribe was canceled
// before registration completed, and safe to call twice.
func (r *Registry) remove(sid int64) {
	r.mu.Lock()
	e, ok := r.byID[sid]
	if ok {
		delete(r.byID, sid)
	}
	r.mu.Unlock()
	_ = e
}

// Remove releases a handle's subscription and writes its UNSUB frame to w.
// It is the only removal path for a Handle.
func (r *Registry) Remove(ctx context.Context, w FrameWriter, h *Handle) error {
	r.remove(h.sid)
	return w.Write(ctx, wire.EncodeUnsub(h.sid, -1))
}

// Replay re-issues SUB for every live subscription, followed by UNSUB with
// the remaining max-messages count where applicable, restoring
// max-messages state across a reconnect (spec.md §4.4, §4.6). It never
// runs concurrently with sweep: Replay holds the registry's single mutex
// for its whole run, and sweep takes the same mutex.
func (r *Registry) Replay(ctx context.Context, w FrameWriter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make([]entry, 0, len(r.byID))
	for _, e := range r.byID {
		if !e.alive {
			continue
		}
		snapshot = append(snapshot, *e)
	}

	for _, e := range snapshot {
		if err := w.Write(ctx, wire.EncodeSub(e.subject, e.queue, e.sid)); err != nil {
			return err
		}
		if e.maxMsgs > 0 {
			remaining := e.maxMsgs - e.delivered
			if remaining < 0 {
				remaining = 0
			}
			if err := w.Write(ctx, wire.EncodeUnsub(e.sid, remaining)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of live subscriptions (observability).
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Close stops the sweep goroutine.
func (r *Registry) Close() {
	if r.stopSweep != nil {
		close(r.stopSweep)
	}
}

func (r *Registry) sweepLoop() {
	t := time.NewTicker(r.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopSweep:
			return
		case <-t.C:
			r.sweepDead()
		}
	}
}

// sweepDead is the periodic defense-in-depth pass mentioned in spec.md §9:
// in a manual-memory language there is no collected weak reference to
// observe, so this only catches entries a caller marked dead via
// MarkAbandoned without calling Remove.
func (r *Registry) sweepDead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, e := range r.byID {
		if !e.alive {
			delete(r.byID, sid)
		}
	}
}

// MarkAbandoned flags a subscription's sink as no longer reachable without
// removing its wire registration yet; the next sweep (or an explicit
// Remove) completes the cleanup. This is the manual-memory substitute for
// the weak-reference collection spec.md §9 describes.
func (r *Registry) MarkAbandoned(sid int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[sid]; ok {
		e.alive = false
	}
}
