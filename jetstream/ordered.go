package jetstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nuid"

	nats "github.com/adred-codev/natscore"
)

// OrderedConsumer auto-creates a memory-backed, single-replica, no-ack
// consumer and transparently recreates it at the correct start sequence
// whenever a stream-sequence gap is observed, per spec.md §4.9's "Ordered
// consumer" paragraph.
type OrderedConsumer struct {
	js     *JetStream
	stream string
	filter string

	mu       sync.Mutex
	name     string
	lastSeq  uint64
	consumer *PullConsumer
	active   *Consumption // the live inner Consumption, swapped on recreate
}

// NewOrderedConsumer creates the backing ephemeral consumer and returns a
// handle ready for Consume.
func NewOrderedConsumer(ctx context.Context, js *JetStream, stream, filterSubject string) (*OrderedConsumer, error) {
	oc := &OrderedConsumer{js: js, stream: stream, filter: filterSubject}
	if err := oc.recreate(ctx, 0); err != nil {
		return nil, err
	}
	return oc, nil
}

func (oc *OrderedConsumer) recreate(ctx context.Context, startSeq uint64) error {
	oc.mu.Lock()
	oldName := oc.name
	oc.mu.Unlock()

	if oldName != "" {
		_ = oc.js.DeleteConsumer(ctx, oc.stream, oldName)
	}

	name := "ordered-" + nuid.Next()
	cfg := ConsumerConfig{
		Name:          name,
		FilterSubject: oc.filter,
		AckPolicy:     AckNone,
		ReplayPolicy:  ReplayInstant,
		MemStorage:    true,
		NumReplicas:   1,
	}
	if startSeq > 0 {
		cfg.DeliverPolicy = DeliverByStartSequence
		cfg.OptStartSeq = startSeq
	} else {
		cfg.DeliverPolicy = DeliverAll
	}

	info, err := oc.js.CreateConsumer(ctx, oc.stream, cfg)
	if err != nil {
		return fmt.Errorf("jetstream: create ordered consumer: %w", err)
	}

	oc.mu.Lock()
	oc.name = info.Name
	oc.consumer = oc.js.PullSubscribe(oc.stream, info.Name)
	oc.mu.Unlock()
	return nil
}

// Consume starts the underlying pull consumer, wrapping its message stream
// with sequence-gap detection: any non-contiguous delivered sequence
// triggers a transparent recreate at last+1 (spec.md §4.9).
func (oc *OrderedConsumer) Consume(ctx context.Context, cfg ConsumeConfig) (*Consumption, error) {
	oc.mu.Lock()
	pc := oc.consumer
	oc.mu.Unlock()

	inner, err := pc.Consume(ctx, cfg)
	if err != nil {
		return nil, err
	}
	oc.mu.Lock()
	oc.active = inner
	oc.mu.Unlock()

	out := &Consumption{
		msgs:    make(chan *nats.Msg, 64),
		notify:  make(chan Notification, 16),
		stopped: make(chan struct{}),
	}

	// relayWG tracks every forwardNotifications/relay goroutine across all
	// generations (a gap-triggered recreate starts a new pair without
	// stopping the old one's goroutines until they observe the old inner's
	// channels close). cancelRoute must wait for all of them to exit before
	// the embedded Stop() closes out.msgs/out.notify, or a goroutine still
	// selecting on them would send on a closed channel.
	var relayWG sync.WaitGroup
	out.cancelRoute = func() {
		oc.mu.Lock()
		active := oc.active
		oc.mu.Unlock()
		if active != nil {
			active.Stop()
		}
		relayWG.Wait()
	}

	relayWG.Add(2)
	go func() { defer relayWG.Done(); forwardNotifications(inner, out) }()
	go func() { defer relayWG.Done(); oc.relay(ctx, inner, out, cfg, &relayWG) }()

	return out, nil
}

func forwardNotifications(inner, out *Consumption) {
	for n := range inner.notify {
		select {
		case out.notify <- n:
		case <-out.stopped:
			return
		}
	}
}

// relay forwards inner's delivered messages to out, detecting sequence
// gaps and recreating the backing consumer as needed. It never closes
// out.msgs/out.notify itself — the outer Consumption's Stop() owns that,
// once cancelRoute's relayWG.Wait() confirms every relay/forwardNotifications
// goroutine (across every generation) has returned.
func (oc *OrderedConsumer) relay(ctx context.Context, inner, out *Consumption, cfg ConsumeConfig, relayWG *sync.WaitGroup) {
	for msg := range inner.Messages() {
		seq, ok := parseDeliverySeq(msg.Reply)
		if ok {
			oc.mu.Lock()
			expected := oc.lastSeq + 1
			gap := oc.lastSeq != 0 && seq != expected
			if !gap {
				oc.lastSeq = seq
			}
			oc.mu.Unlock()

			if gap {
				inner.Stop()
				if err := oc.recreate(ctx, expected); err == nil {
					oc.mu.Lock()
					pc := oc.consumer
					oc.mu.Unlock()
					next, err := pc.Consume(ctx, cfg)
					if err == nil {
						oc.mu.Lock()
						oc.active = next
						oc.mu.Unlock()
						relayWG.Add(2)
						go func() { defer relayWG.Done(); forwardNotifications(next, out) }()
						go func() { defer relayWG.Done(); oc.relay(ctx, next, out, cfg, relayWG) }()
					}
				}
				return
			}
		}

		select {
		case out.msgs <- msg:
		case <-out.stopped:
			return
		}
	}
}

// parseDeliverySeq extracts the stream sequence from a JetStream delivery
// reply subject of the form "$JS.ACK.<stream>.<consumer>.<num_delivered>.
// <stream_seq>.<consumer_seq>.<timestamp>.<pending>".
func parseDeliverySeq(reply string) (uint64, bool) {
	tokens := splitSubject(reply)
	const streamSeqIndex = 5
	if len(tokens) <= streamSeqIndex {
		return 0, false
	}
	var seq uint64
	if _, err := fmt.Sscanf(tokens[streamSeqIndex], "%d", &seq); err != nil {
		return 0, false
	}
	return seq, true
}

func splitSubject(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
