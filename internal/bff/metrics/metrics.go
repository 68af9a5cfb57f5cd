// Package metrics holds the Prometheus collectors of the BFF.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "union_bff"

// Metrics implements service.Observer and apiclient.RetryObserver and
// instruments the HTTP routes. Each instance owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Logins      *prometheus.CounterVec
	Refreshes   *prometheus.CounterVec
	Logouts     prometheus.Counter
	APIRetries  *prometheus.CounterVec
	HTTPTotal   *prometheus.CounterVec
	HTTPLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Session refreshes by outcome. Shared single-flight calls count once per caller.",
			},
			[]string{"outcome"},
		),
		Logouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logouts_total",
				Help:      "Logouts served.",
			},
		),
		APIRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_unauthorized_total",
				Help:      "Upstream 401 responses by how the proxy handled them.",
			},
			[]string{"outcome"},
		),
		HTTPTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "code"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Logins,
		m.Refreshes,
		m.Logouts,
		m.APIRetries,
		m.HTTPTotal,
		m.HTTPLatency,
	)

	return m
}

func (m *Metrics) ObserveLogin(outcome string)   { m.Logins.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveRefresh(outcome string) { m.Refreshes.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveLogout()                { m.Logouts.Inc() }
func (m *Metrics) ObserveRetry(outcome string)   { m.APIRetries.WithLabelValues(outcome).Inc() }

// Instrument counts and times requests to one route. route should be the
// mux pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		m.HTTPLatency.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.HTTPTotal.MustCurryWith(labels), h),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
