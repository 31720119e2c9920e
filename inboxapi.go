package nats

import "github.com/adred-codev/natscore/internal/wire"

// NewInbox allocates a fresh reply subject under this connection's inbox
// prefix, for a caller that needs to correlate many replies over one
// subject rather than the single-shot waiter Request uses (the
// pull-consumer engine's reply subject, per spec.md §4.9).
func (c *Conn) NewInbox() string {
	return c.mux.Subject()
}

// SubscribeInbox registers a persistent route for subject (must have come
// from NewInbox): every frame addressed to it invokes handler until the
// returned cancel func runs. This is the inbox multiplexer's "persistent
// route" mode (internal/inbox.Mux.RegisterRoute), exposed to out-of-package
// callers such as the pull-consumer engine that cannot reach the
// unexported mux field directly.
func (c *Conn) SubscribeInbox(subject string, handler func(*Msg)) (cancel func()) {
	route := c.mux.RegisterRoute(subject, func(f *wire.Frame) {
		handler(msgFromFrame(f, nil))
	})
	return route.Cancel
}
