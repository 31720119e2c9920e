package nats

import (
	"context"
	"sync"

	"github.com/adred-codev/natscore/internal/subs"
	"github.com/adred-codev/natscore/internal/wire"
)

// Subscription is a per-connection SID (spec.md §3). Messages delivered on
// it preserve broker order (spec.md §5); an async subscription dispatches
// through a single per-subscription goroutine to keep that guarantee even
// though Deliver is called from the connection's read loop.
type Subscription struct {
	conn    *Conn
	handle  *subs.Handle
	subject string
	queue   string

	cb func(*Msg)

	mu      sync.Mutex
	pending chan *Msg
	closed  bool
}

const defaultSyncBacklog = 512

// Subscribe registers an asynchronous subscription: cb is invoked for
// every message, in delivery order, on a dedicated goroutine.
func (c *Conn) Subscribe(subject string, cb func(*Msg)) (*Subscription, error) {
	return c.subscribe(subject, "", 0, cb)
}

// QueueSubscribe registers a queue-group subscription: the broker load
// balances one copy of each message across all subscribers sharing queue.
func (c *Conn) QueueSubscribe(subject, queue string, cb func(*Msg)) (*Subscription, error) {
	if queue == "" {
		return nil, &Error{Kind: KindUsage, Err: errEmptyQueue}
	}
	return c.subscribe(subject, queue, 0, cb)
}

// SubscribeSync registers a synchronous subscription: call NextMsg to pull
// messages one at a time.
func (c *Conn) SubscribeSync(subject string) (*Subscription, error) {
	return c.subscribe(subject, "", 0, nil)
}

func (c *Conn) subscribe(subject, queue string, maxMsgs int64, cb func(*Msg)) (*Subscription, error) {
	if c.isInboxSubject(subject) && queue != "" {
		return nil, &Error{Kind: KindUsage, Err: errQueueOnInbox}
	}

	sub := &Subscription{conn: c, subject: subject, queue: queue, cb: cb}
	if cb == nil {
		sub.pending = make(chan *Msg, defaultSyncBacklog)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	defer cancel()

	h, err := c.registry.Subscribe(ctx, c.writer, subject, queue, maxMsgs, sub)
	if err != nil {
		return nil, classifyWriteErr(err)
	}
	sub.handle = h

	if cb != nil {
		go sub.dispatchLoop()
	}

	return sub, nil
}

// Deliver implements subs.Sink. Async subscriptions hand off to an
// internal channel drained by dispatchLoop so the read loop itself is
// never blocked by a slow callback; sync subscriptions' channel is read
// directly by NextMsg.
func (s *Subscription) Deliver(f *wire.Frame) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || f.IsStatusOnly() {
		return
	}

	msg := msgFromFrame(f, s)
	if s.cb != nil {
		s.ensurePending()
		select {
		case s.pending <- msg:
		default:
			s.conn.log.Warn().Str("subject", s.subject).Msg("nats: async subscription callback queue full, dropping message")
		}
		return
	}

	select {
	case s.pending <- msg:
	default:
		s.conn.log.Warn().Str("subject", s.subject).Msg("nats: sync subscription backlog full, dropping message")
	}
}

func (s *Subscription) ensurePending() {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(chan *Msg, defaultSyncBacklog)
	}
	s.mu.Unlock()
}

func (s *Subscription) dispatchLoop() {
	for msg := range s.pending {
		s.cb(msg)
	}
}

// NextMsg blocks until a message arrives on a synchronous subscription, or
// ctx is done.
func (s *Subscription) NextMsg(ctx context.Context) (*Msg, error) {
	select {
	case msg, ok := <-s.pending:
		if !ok {
			return nil, &Error{Kind: KindCanceled, Err: errConnectionClosed}
		}
		return msg, nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	}
}

// Unsubscribe removes the subscription immediately.
func (s *Subscription) Unsubscribe() error {
	return s.teardown(0)
}

// AutoUnsubscribe limits the subscription to max further messages,
// matching the UNSUB <sid> <max> wire form.
func (s *Subscription) AutoUnsubscribe(max int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.conn.opts.DialTimeout)
	defer cancel()
	return s.conn.writer.Write(ctx, wire.EncodeUnsub(s.handle.SID(), max))
}

func (s *Subscription) teardown(_ int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.pending
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.conn.opts.DialTimeout)
	defer cancel()
	err := s.conn.registry.Remove(ctx, s.conn.writer, s.handle)

	if pending != nil && s.cb != nil {
		close(pending)
	}
	return err
}

func classifyWriteErr(err error) error {
	if nerr, ok := err.(*Error); ok {
		return nerr
	}
	return &Error{Kind: KindTransport, Err: err}
}
