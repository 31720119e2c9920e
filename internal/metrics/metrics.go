// Package metrics exposes Prometheus collectors for the connection core and
// pull-consumer engine, following the Registry pattern of
// go-server-3/internal/metrics. A nil *Registry is a valid no-op receiver
// everywhere it's used, so instrumentation stays optional.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the collectors a connection reports into.
type Registry struct {
	Reconnects        prometheus.Counter
	InMsgs            prometheus.Counter
	OutMsgs           prometheus.Counter
	InBytes           prometheus.Counter
	OutBytes          prometheus.Counter
	ActiveSubs        prometheus.Gauge
	PullsIssued        prometheus.Counter
	PullCreditPending  prometheus.Gauge
	HeartbeatsMissed   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewRegistry creates and registers collectors against a fresh
// prometheus.Registry (callers embedding this in a larger app can instead
// use NewRegistryFor with their own registry).
func NewRegistry() *Registry {
	return NewRegistryFor(prometheus.NewRegistry())
}

// NewRegistryFor registers collectors against the given registry. reg is
// taken concretely (not the narrower Registerer interface) because Handler
// needs the same registry back as a Gatherer to serve exactly the metrics
// registered here, not whatever happens to live in the package-level
// DefaultGatherer.
func NewRegistryFor(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		gatherer: reg,
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_reconnects_total",
			Help: "Total number of reconnects performed by the connection supervisor.",
		}),
		InMsgs: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_in_msgs_total",
			Help: "Total number of messages received from the broker.",
		}),
		OutMsgs: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_out_msgs_total",
			Help: "Total number of messages published to the broker.",
		}),
		InBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_in_bytes_total",
			Help: "Total payload bytes received from the broker.",
		}),
		OutBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_out_bytes_total",
			Help: "Total payload bytes published to the broker.",
		}),
		ActiveSubs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nats_client_active_subscriptions",
			Help: "Number of live subscriptions in the registry.",
		}),
		PullsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_pulls_issued_total",
			Help: "Total number of CONSUMER.MSG.NEXT pull requests issued.",
		}),
		PullCreditPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nats_client_pull_credit_pending_msgs",
			Help: "Outstanding pending_msgs credit for the active pull consumer.",
		}),
		HeartbeatsMissed: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_client_heartbeats_missed_total",
			Help: "Total number of pull-consumer idle-heartbeat deadlines missed.",
		}),
	}
}

// Handler exposes the metrics in Prometheus text format, for embedding in a
// host application's own mux. Serves this Registry's own gatherer, not the
// package-level prometheus.DefaultGatherer.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
