package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status is a point-in-time view of the index read on every scrape.
type Status struct {
	Ready           bool
	RealTimeFlush   bool
	PendingRealTime int
}

// StatusCollector turns a Status source into gauges at scrape time.
type StatusCollector struct {
	source func() Status

	ready   *prometheus.Desc
	flush   *prometheus.Desc
	pending *prometheus.Desc
}

// NewStatusCollector builds a collector over source.
func NewStatusCollector(source func() Status) *StatusCollector {
	return &StatusCollector{
		source: source,
		ready: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "initialized"),
			"1 when the index is initialized.",
			nil, nil,
		),
		flush: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "realtime_flush_in_flight"),
			"1 while a real-time flush is running in the engine.",
			nil, nil,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "realtime_pending_events"),
			"Events queued for the next real-time flush.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ready
	ch <- c.flush
	ch <- c.pending
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source()
	ch <- prometheus.MustNewConstMetric(c.ready, prometheus.GaugeValue, boolFloat(s.Ready))
	ch <- prometheus.MustNewConstMetric(c.flush, prometheus.GaugeValue, boolFloat(s.RealTimeFlush))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.PendingRealTime))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
