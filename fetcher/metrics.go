package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetcher and the pipeline
// driving it.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	BytesFetched    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	OutcomesTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetcher_request_duration_seconds",
			Help:    "HTTP request latency for image downloads.",
			Buckets: prometheus.DefBuckets,
		},
	)
	bytesFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetcher_bytes_fetched_total",
			Help: "Total image bytes accepted from remote servers.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_images_total",
			Help: "Processed URLs by final outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, bytesFetched, errorsTotal, outcomes)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		BytesFetched:    bytesFetched,
		ErrorsTotal:     errorsTotal,
		OutcomesTotal:   outcomes,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddBytes adds accepted body bytes.
func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}
	m.BytesFetched.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncOutcome increments the per-URL outcome counter.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}
