// Package metrics exposes Prometheus instrumentation for the
// city-parse HTTP service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus metrics for the server.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by endpoint and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks HTTP request latency by endpoint.
	RequestDuration *prometheus.HistogramVec

	// ErrorsTotal counts errors by type.
	ErrorsTotal *prometheus.CounterVec

	// BackendCallsTotal counts chat backend invocations by task and
	// outcome.
	BackendCallsTotal *prometheus.CounterVec

	// BackendCallDuration tracks chat backend call latency by task.
	BackendCallDuration *prometheus.HistogramVec

	// PromptTokens tracks the token count of submitted inputs.
	PromptTokens prometheus.Histogram
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityparse_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cityparse_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityparse_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		BackendCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityparse_backend_calls_total",
				Help: "Total number of chat backend calls by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		BackendCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cityparse_backend_call_duration_seconds",
				Help:    "Duration of chat backend calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cityparse_prompt_tokens",
				Help:    "Token count of submitted input texts",
				Buckets: []float64{8, 16, 32, 64, 128, 256, 512, 1024},
			},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
