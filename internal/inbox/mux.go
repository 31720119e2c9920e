// Package inbox implements the connection-wide inbox multiplexer: a single
// wildcard subscription demultiplexed by final-token lookup into per-caller
// channels (spec.md §4.5).
package inbox

import (
	"fmt"
	"sync"

	"github.com/nats-io/nuid"

	"github.com/adred-codev/natscore/internal/wire"
)

type route struct {
	ch      chan *wire.Frame // one-shot waiters (Request/reply)
	sinkFn  func(*wire.Frame) // persistent routes (pull-consumer engine)
	oneShot bool
}

// Waiter receives exactly one frame for its inbox token, or is torn down
// by Cancel.
type Waiter struct {
	ch    chan *wire.Frame
	token string
	mux   *Mux
}

// C returns the channel the caller should select on.
func (w *Waiter) C() <-chan *wire.Frame { return w.ch }

// Cancel deregisters the waiter; safe to call after it already fired.
func (w *Waiter) Cancel() { w.mux.remove(w.token) }

// Route is a persistent (many-message) registration, used by the
// pull-consumer engine which receives an unbounded sequence of messages
// and status frames over one reply subject for the lifetime of a consume
// call.
type Route struct {
	token string
	mux   *Mux
}

// Cancel deregisters the persistent route.
func (r *Route) Cancel() { r.mux.remove(r.token) }

// Mux routes inbound messages on "<prefix><token>" to whichever waiter or
// persistent route is registered for <token>, in O(1) by final subject
// token.
type Mux struct {
	prefix string

	mu   sync.Mutex
	byTk map[string]route
}

// New creates a Mux for the given connection-wide inbox prefix, which must
// already end in "." (e.g. "_INBOX.<conn-nuid>.").
func New(prefix string) *Mux {
	return &Mux{prefix: prefix, byTk: make(map[string]route)}
}

// NewPrefix generates a fresh connection-wide inbox prefix using nuid for
// fast, collision-resistant token generation -- the same tool the real NATS
// client ecosystem uses for this (nats-io/nuid).
func NewPrefix() string {
	return fmt.Sprintf("_INBOX.%s.", nuid.Next())
}

// Subject returns a new, unique reply subject under this mux's prefix.
func (m *Mux) Subject() string {
	return m.prefix + nuid.Next()
}

// Wildcard returns the single real subscription subject this Mux needs:
// "<prefix>*".
func (m *Mux) Wildcard() string {
	return m.prefix + "*"
}

// Register creates a one-shot waiter for subject (must have been produced
// by Subject). QueueSubscribe on an inbox subject is rejected by the
// caller before reaching here per spec.md §4.5's Usage error.
func (m *Mux) Register(subject string) *Waiter {
	token := subject[len(m.prefix):]
	ch := make(chan *wire.Frame, 1)
	m.mu.Lock()
	m.byTk[token] = route{ch: ch, oneShot: true}
	m.mu.Unlock()
	return &Waiter{ch: ch, token: token, mux: m}
}

// RegisterRoute creates a persistent registration for subject that
// receives every frame addressed to it until Cancel, used by the
// pull-consumer engine which expects many messages and status frames over
// one reply subject.
func (m *Mux) RegisterRoute(subject string, sinkFn func(*wire.Frame)) *Route {
	token := subject[len(m.prefix):]
	m.mu.Lock()
	m.byTk[token] = route{sinkFn: sinkFn, oneShot: false}
	m.mu.Unlock()
	return &Route{token: token, mux: m}
}

// Dispatch routes f to the registered waiter or route for its subject's
// final token, if any. Unmatched frames (no registration, e.g. the waiter
// already fired or was canceled) are dropped silently -- this is normal
// for a response arriving after a Request timeout.
func (m *Mux) Dispatch(f *wire.Frame) {
	token := lastToken(f.Subject, len(m.prefix))
	m.mu.Lock()
	r, ok := m.byTk[token]
	if ok && r.oneShot {
		delete(m.byTk, token)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if r.oneShot {
		select {
		case r.ch <- f:
		default:
			// A buffered channel of size 1 with a single writer (us) and a
			// single one-shot reader cannot be full here; this default
			// exists only to avoid ever blocking the dispatcher on a
			// misbehaving caller.
		}
		return
	}
	r.sinkFn(f)
}

func lastToken(subject string, prefixLen int) string {
	if len(subject) <= prefixLen {
		return ""
	}
	return subject[prefixLen:]
}

func (m *Mux) remove(token string) {
	m.mu.Lock()
	delete(m.byTk, token)
	m.mu.Unlock()
}

// Len reports the number of registrations still pending (observability/tests).
func (m *Mux) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTk)
}
