// Package telemetry exports Prometheus metrics and keeps in-memory search
// statistics. Nothing leaves the host unless /metrics is scraped.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swiftsearch"

// Metrics holds the collectors for one process. All methods are safe on a
// nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	ready          prometheus.Gauge
	flushes        *prometheus.CounterVec
	flushBatch     prometheus.Histogram
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	engineDuration *prometheus.HistogramVec
	indexed        *prometheus.CounterVec
	archiveOps     *prometheus.CounterVec
}

// NewMetrics creates collectors registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle state transitions by target state.",
		}, []string{"state"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "ready",
			Help:      "1 while the index accepts operations.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "flushes_total",
			Help:      "Real-time batch flushes by result.",
		}, []string{"result"}),
		flushBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "flush_batch_size",
			Help:      "Messages per real-time flush.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Search calls by API and result.",
		}, []string{"api", "result"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency including query construction.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"api"}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine call latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"op"}),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "indexed_messages_total",
			Help:      "Messages accepted by the engine per tier.",
		}, []string{"tier"}),
		archiveOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "operations_total",
			Help:      "Archive compress and decompress calls by result.",
		}, []string{"op", "result"}),
	}
	m.registry.MustRegister(
		m.transitions, m.ready, m.flushes, m.flushBatch, m.searches,
		m.searchDuration, m.engineDuration, m.indexed, m.archiveOps,
	)
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Register adds a collector, such as a StatusCollector.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(c)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transition records a lifecycle state change.
func (m *Metrics) Transition(state string, ready bool) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
	if ready {
		m.ready.Set(1)
	} else {
		m.ready.Set(0)
	}
}

// Flush records one real-time flush outcome.
func (m *Metrics) Flush(n int, err error) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.flushBatch.Observe(float64(n))
	}
}

// Search records one search call.
func (m *Metrics) Search(api string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(api, result(err)).Inc()
	m.searchDuration.WithLabelValues(api).Observe(elapsed.Seconds())
}

// EngineCall records the latency of one engine operation.
func (m *Metrics) EngineCall(op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Indexed adds n messages to the tier's counter.
func (m *Metrics) Indexed(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.indexed.WithLabelValues(tier).Add(float64(n))
}

// Archive records a compress or decompress outcome.
func (m *Metrics) Archive(op string, ok bool) {
	if m == nil {
		return
	}
	res := "ok"
	if !ok {
		res = "error"
	}
	m.archiveOps.WithLabelValues(op, res).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
