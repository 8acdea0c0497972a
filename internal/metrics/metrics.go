// Package metrics exposes Prometheus counters for validation outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation outcome label values.
const (
	OutcomeAccepted         = "accepted"
	OutcomeMissingSignature = "missing_signature"
	OutcomeMissingTimestamp = "missing_timestamp"
	OutcomeStaleTimestamp   = "stale_timestamp"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeReplay           = "replay"
	OutcomeRateLimited      = "rate_limited"
)

// Metrics bundles the gatekeeper's Prometheus collectors on a private
// registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// Validations counts validation attempts by provider and outcome.
	Validations *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_validations_total",
			Help: "Webhook validation attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	registry.MustRegister(
		m.Validations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Observe records one validation attempt.
func (m *Metrics) Observe(provider, outcome string) {
	m.Validations.WithLabelValues(provider, outcome).Inc()
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
