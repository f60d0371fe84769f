// Package metrics exposes executor metrics through Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for query duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Metrics wraps the collectors recorded by the query executors.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	rowsReturned  *prometheus.CounterVec
	batchPages    prometheus.Counter
	openSessions  prometheus.Gauge
}

// New creates metrics on a private registry. A nil or empty buckets slice
// selects the default buckets.
func New(namespace string, buckets []float64) *Metrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of executor calls",
			},
			[]string{"op", "status"},
		),

		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_ms",
				Help:      "Executor call duration in milliseconds, connection setup included",
				Buckets:   buckets,
			},
			[]string{"op"},
		),

		rowsReturned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_returned_total",
				Help:      "Total rows returned to callers",
			},
			[]string{"op"},
		),

		batchPages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_pages_total",
				Help:      "Total batch pages sent to the driver",
			},
		),

		openSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_sessions",
				Help:      "Database sessions currently open",
			},
		),
	}

	registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.rowsReturned,
		m.batchPages,
		m.openSessions,
	)
	return m
}

// RecordQuery records one executor call.
func (m *Metrics) RecordQuery(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.queriesTotal.WithLabelValues(op, status).Inc()
	m.queryDuration.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}

// RecordRows adds n returned rows for op.
func (m *Metrics) RecordRows(op string, n int) {
	if m == nil {
		return
	}
	m.rowsReturned.WithLabelValues(op).Add(float64(n))
}

// RecordBatchPage counts one batch round-trip.
func (m *Metrics) RecordBatchPage() {
	if m == nil {
		return
	}
	m.batchPages.Inc()
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the Prometheus text format to path,
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
