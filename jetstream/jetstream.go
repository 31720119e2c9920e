// Package jetstream implements the JetStream API client and pull-consumer
// engine of spec.md §4.8/§4.9: typed JSON request/response over a reserved
// subject namespace, plus a stateful controller that converts a user's
// "consume N messages / B bytes" intent into a sequence of server pull
// requests with credit accounting and heartbeat supervision.
package jetstream

import (
	"github.com/rs/zerolog"

	nats "github.com/adred-codev/natscore"
	"github.com/adred-codev/natscore/internal/metrics"
	"github.com/adred-codev/natscore/internal/ratelimit"
)

// DefaultAPIPrefix is the broker's default JetStream API subject prefix
// (spec.md §6).
const DefaultAPIPrefix = "$JS.API."

// JetStream is a thin client bound to one Conn, scoping every API call and
// pull consumer to a subject prefix.
type JetStream struct {
	conn    *nats.Conn
	prefix  string
	log     zerolog.Logger
	metrics *metrics.Registry
	pullRL  *ratelimit.Limiter
}

// Option configures New.
type Option func(*JetStream)

// WithAPIPrefix overrides DefaultAPIPrefix, for brokers configured with a
// custom JetStream domain/account prefix.
func WithAPIPrefix(prefix string) Option {
	return func(js *JetStream) { js.prefix = prefix }
}

// WithLogger attaches a logger; defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(js *JetStream) { js.log = l }
}

// WithMetrics attaches a metrics registry; nil (the default) disables
// instrumentation.
func WithMetrics(r *metrics.Registry) Option {
	return func(js *JetStream) { js.metrics = r }
}

// WithPullRateLimit bounds the rate at which the pull-consumer engine may
// issue CONSUMER.MSG.NEXT pulls, guarding against a misbehaving refill
// predicate spinning against the broker (SPEC_FULL.md §5 supplement).
func WithPullRateLimit(perSecond float64, burst int) Option {
	return func(js *JetStream) { js.pullRL = ratelimit.New(perSecond, burst) }
}

// New binds a JetStream client to conn.
func New(conn *nats.Conn, opts ...Option) *JetStream {
	js := &JetStream{
		conn:   conn,
		prefix: DefaultAPIPrefix,
		log:    zerolog.Nop(),
		pullRL: ratelimit.New(0, 1), // disabled by default
	}
	for _, o := range opts {
		o(js)
	}
	return js
}
