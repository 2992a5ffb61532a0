package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core pipeline metrics.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	BatchSize       prometheus.Histogram
	EventsConsumed  prometheus.Counter
	EventsByStatus  *prometheus.CounterVec
	SinkRecords     *prometheus.CounterVec
	SinkDeliveries  *prometheus.CounterVec
	SourceLag       prometheus.Gauge
	LastRunUnixTime prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provreport",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total pipeline runs by result (ok, error, skipped, empty)",
			},
			[]string{"result"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "provreport",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of one pipeline run in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "provreport",
				Subsystem: "pipeline",
				Name:      "batch_size",
				Help:      "Number of raw events pulled per run",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		EventsConsumed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "provreport",
				Subsystem: "events",
				Name:      "consumed_total",
				Help:      "Total raw events consumed from the source",
			},
		),

		EventsByStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provreport",
				Subsystem: "events",
				Name:      "classified_total",
				Help:      "Total events classified, by status",
			},
			[]string{"status"},
		),

		SinkRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provreport",
				Subsystem: "sink",
				Name:      "records_total",
				Help:      "Per-record sink outcomes (forwarded, skipped, dropped, degraded, failed)",
			},
			[]string{"sink", "outcome"},
		),

		SinkDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provreport",
				Subsystem: "sink",
				Name:      "deliveries_total",
				Help:      "Batch deliveries handed to sinks, by result",
			},
			[]string{"sink", "result"},
		),

		SourceLag: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "provreport",
				Subsystem: "source",
				Name:      "lag_events",
				Help:      "Events remaining behind the read position, when the source reports it",
			},
		),

		LastRunUnixTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "provreport",
				Subsystem: "pipeline",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run",
			},
		),
	}
}

// Per-record sink outcomes
const (
	OutcomeForwarded = "forwarded"
	OutcomeSkipped   = "skipped"
	OutcomeDropped   = "dropped"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
)

// RecordRun records one completed run. Safe on a nil receiver so callers
// can run unmetered.
func (m *Metrics) RecordRun(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.LastRunUnixTime.SetToCurrentTime()
}

// RecordBatch records the size of one consumed batch.
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
	m.EventsConsumed.Add(float64(size))
}

// RecordClassified records one classified event.
func (m *Metrics) RecordClassified(status string) {
	if m == nil {
		return
	}
	m.EventsByStatus.WithLabelValues(status).Inc()
}

// RecordSinkRecord records a per-record sink outcome.
func (m *Metrics) RecordSinkRecord(sink, outcome string) {
	if m == nil {
		return
	}
	m.SinkRecords.WithLabelValues(sink, outcome).Inc()
}

// RecordDelivery records a batch handed to one sink.
func (m *Metrics) RecordDelivery(sink, result string) {
	if m == nil {
		return
	}
	m.SinkDeliveries.WithLabelValues(sink, result).Inc()
}

// collectors returns every metric for registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.BatchSize,
		m.EventsConsumed,
		m.EventsByStatus,
		m.SinkRecords,
		m.SinkDeliveries,
		m.SourceLag,
		m.LastRunUnixTime,
	}
}
