package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds rate limiting specific Prometheus metrics.
type Metrics struct {
	Exceeded    *prometheus.CounterVec
	StoreErrors *prometheus.CounterVec
}

// New creates the rate limiting metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the rate limiting metrics on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Exceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookedge_rate_limit_exceeded_total",
			Help: "Rate limit denials by route class and scope.",
		}, []string{"class", "scope"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookedge_rate_limit_store_errors_total",
			Help: "Counter store failures that caused a fail-open allow.",
		}, []string{"store"}),
	}
}

// RecordExceeded increments the denial counter for a class/scope pair.
func (m *Metrics) RecordExceeded(class, scope string) {
	m.Exceeded.WithLabelValues(class, scope).Inc()
}

// RecordStoreError increments the store failure counter.
func (m *Metrics) RecordStoreError(store string) {
	m.StoreErrors.WithLabelValues(store).Inc()
}
