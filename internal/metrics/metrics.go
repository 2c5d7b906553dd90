// Package metrics exports Prometheus metrics for the triage pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triage"

// Metrics holds all pipeline metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Load metrics
	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Records      *prometheus.CounterVec
	Collection   prometheus.Gauge

	// Classification distribution
	Classified *prometheus.CounterVec

	// Workflow
	StatusChanges *prometheus.CounterVec
	Replies       *prometheus.CounterVec
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers on reg and serves from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{gatherer: g}

	m.Loads = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loads_total",
		Help:      "Collection loads by outcome (ok, unavailable)",
	}, []string{"outcome"})

	m.LoadDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "load_duration_seconds",
		Help:      "Time to fetch and process one batch",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	m.Records = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "Raw records seen by the pipeline (retained, filtered, invalid)",
	}, []string{"result"})

	m.Collection = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collection_size",
		Help:      "Records in the current collection",
	})

	m.Classified = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classified_total",
		Help:      "Processed records by priority and sentiment",
	}, []string{"priority", "sentiment"})

	m.StatusChanges = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_changes_total",
		Help:      "Status updates by target status",
	}, []string{"status"})

	m.Replies = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_total",
		Help:      "Reply delivery attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	return m
}

// RecordLoad tracks one completed load.
func (m *Metrics) RecordLoad(ok bool, d time.Duration, retained, filtered, invalid int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	m.Loads.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(d.Seconds())
	m.Records.WithLabelValues("retained").Add(float64(retained))
	m.Records.WithLabelValues("filtered").Add(float64(filtered))
	m.Records.WithLabelValues("invalid").Add(float64(invalid))
	m.Collection.Set(float64(retained))
}

// RecordClassification counts one processed record.
func (m *Metrics) RecordClassification(priority, sentiment string) {
	if m == nil {
		return
	}
	m.Classified.WithLabelValues(priority, sentiment).Inc()
}

// RecordStatusChange counts one applied status update.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// RecordReply counts one delivery attempt.
func (m *Metrics) RecordReply(provider string, ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.Replies.WithLabelValues(provider, outcome).Inc()
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
