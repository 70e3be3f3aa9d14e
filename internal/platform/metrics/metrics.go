package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway-wide Prometheus metrics.
type Metrics struct {
	RequestsBlocked    *prometheus.CounterVec
	WebhookEvents      *prometheus.CounterVec
	DuplicateEvents    prometheus.Counter
	StateConflicts     prometheus.Counter
	SettingsFetchFails prometheus.Counter
	RequestLatency     *prometheus.HistogramVec
}

// New creates the gateway metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the gateway metrics on the given registerer. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookedge_requests_blocked_total",
			Help: "Requests denied at the edge, by stage (rate_limit, maintenance, unauthorized).",
		}, []string{"stage"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookedge_webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		DuplicateEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookedge_duplicate_events_total",
			Help: "Webhook deliveries acknowledged without reprocessing.",
		}),
		StateConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookedge_state_conflicts_total",
			Help: "Events recorded for manual reconciliation after an invalid transition.",
		}),
		SettingsFetchFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookedge_settings_fetch_failures_total",
			Help: "Settings store fetches that fell back to last-known-good state.",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookedge_request_duration_seconds",
			Help:    "Request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
