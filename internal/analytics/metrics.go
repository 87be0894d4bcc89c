package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the aggregator's Prometheus collectors
type Metrics struct {
	adapterCalls   *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	inserted       *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	adapterLatency *prometheus.HistogramVec
	sinkFailures   prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_aggregator",
			Name:      "adapter_calls_total",
			Help:      "Source adapter invocations",
		}, []string{"source", "success"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_aggregator",
			Name:      "candidates_total",
			Help:      "Candidate events returned by source adapters",
		}, []string{"source"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_aggregator",
			Name:      "events_inserted_total",
			Help:      "Events persisted",
		}, []string{"source"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_aggregator",
			Name:      "duplicates_suppressed_total",
			Help:      "Candidates dropped as cross-source duplicates",
		}, []string{"source"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "events_aggregator",
			Name:      "adapter_duration_seconds",
			Help:      "Time spent in one source adapter call",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45, 60},
		}, []string{"source"}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "events_aggregator",
			Name:      "analytics_write_failures_total",
			Help:      "Analytics entries that could not be stored",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.adapterCalls, m.candidates, m.inserted, m.duplicates, m.adapterLatency, m.sinkFailures)
	}
	return m
}

func (m *Metrics) observe(inv Invocation) {
	if m == nil {
		return
	}
	src := string(inv.Source)
	success := "true"
	if inv.Err != nil {
		success = "false"
	}
	m.adapterCalls.WithLabelValues(src, success).Inc()
	m.candidates.WithLabelValues(src).Add(float64(inv.EventsScraped))
	m.inserted.WithLabelValues(src).Add(float64(inv.EventsInserted))
	m.duplicates.WithLabelValues(src).Add(float64(inv.Duplicates))
	m.adapterLatency.WithLabelValues(src).Observe(inv.Duration.Seconds())
}
