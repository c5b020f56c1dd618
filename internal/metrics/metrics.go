// Package metrics holds the Prometheus collectors for document structuring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docstruct"

// Metrics groups every collector the service exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	nodes         prometheus.Counter
	recoveries    *prometheus.CounterVec // by strategy
	streamErrors  *prometheus.CounterVec // by kind
	chunkDuration prometheus.Histogram
	jobs          *prometheus.CounterVec // by final status
	queueDepth    prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "nodes_total",
			Help:      "Hierarchy nodes emitted to consumers",
		}),

		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "recoveries_total",
			Help:      "Incomplete model streams repaired, by recovery strategy",
		}, []string{"strategy"}),

		streamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Errors raised while structuring a document",
		}, []string{"kind"}),

		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "chunk_duration_seconds",
			Help:      "Wall time of one chunk's model stream",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Parse jobs finished, by status",
		}, []string{"status"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Parse jobs waiting for a worker",
		}),
	}

	m.registry.MustRegister(
		m.nodes,
		m.recoveries,
		m.streamErrors,
		m.chunkDuration,
		m.jobs,
		m.queueDepth,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) NodeEmitted() {
	if m == nil {
		return
	}
	m.nodes.Inc()
}

func (m *Metrics) Recovered(strategy string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(strategy).Inc()
}

// StreamError counts an error of kind "model", "chunking" or "extraction".
func (m *Metrics) StreamError(kind string) {
	if m == nil {
		return
	}
	m.streamErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ChunkDone(d time.Duration) {
	if m == nil {
		return
	}
	m.chunkDuration.Observe(d.Seconds())
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
