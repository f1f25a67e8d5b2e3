package activity

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry and counts login outcomes.
// It is itself a Sink.
type Metrics struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewMetrics creates the registry with Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_auth_attempts_total",
			Help: "Authentication attempts by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_admin_events_total",
			Help: "Administrative actions by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	m.registry.MustRegister(
		m.attempts,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Name identifies the sink in logs.
func (m *Metrics) Name() string { return "prometheus" }

// Record counts login events by outcome and admin events by action and outcome.
func (m *Metrics) Record(_ context.Context, e Event) error {
	if e.IsLogin() {
		m.attempts.WithLabelValues(e.Outcome).Inc()
		return nil
	}
	m.events.WithLabelValues(e.Action, e.Outcome).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
