package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the delivery pipeline.
// A nil *Metrics records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	AttemptsTotal      *prometheus.CounterVec
	AttemptLatency     prometheus.Histogram
	DeadLettersTotal   prometheus.Counter
	CircuitRejections  *prometheus.CounterVec
	ReplaysTotal       *prometheus.CounterVec
	AlertFailuresTotal prometheus.Counter
}

// NewMetrics registers the instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_runs_total",
			Help: "Completed runs by terminal status.",
		}, []string{"status"}),
		AttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_delivery_attempts_total",
			Help: "Delivery attempts by outcome.",
		}, []string{"outcome"}),
		AttemptLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "conduit_delivery_attempt_seconds",
			Help:    "Latency of single delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		DeadLettersTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "conduit_dead_letters_total",
			Help: "Events moved to the dead-letter store.",
		}),
		CircuitRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_circuit_rejections_total",
			Help: "Calls rejected by an open circuit, by target.",
		}, []string{"target"}),
		ReplaysTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_replays_total",
			Help: "Dead-letter replays by outcome.",
		}, []string{"outcome"}),
		AlertFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "conduit_alert_failures_total",
			Help: "Failure alerts that could not be delivered.",
		}),
	}
}

// RecordAttempt counts one delivery attempt and observes its latency.
func (m *Metrics) RecordAttempt(outcome string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.AttemptLatency.Observe(latencySeconds)
}

// RecordRun counts a run reaching a terminal status.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordDeadLetter counts an event moved to the dead-letter store.
func (m *Metrics) RecordDeadLetter() {
	if m == nil {
		return
	}
	m.DeadLettersTotal.Inc()
}

// RecordCircuitRejection counts a call the breaker refused.
func (m *Metrics) RecordCircuitRejection(target string) {
	if m == nil {
		return
	}
	m.CircuitRejections.WithLabelValues(target).Inc()
}

// RecordReplay counts a replay by outcome ("replayed" or "failed").
func (m *Metrics) RecordReplay(outcome string) {
	if m == nil {
		return
	}
	m.ReplaysTotal.WithLabelValues(outcome).Inc()
}

// RecordAlertFailure counts an alert the notifier could not deliver.
func (m *Metrics) RecordAlertFailure() {
	if m == nil {
		return
	}
	m.AlertFailuresTotal.Inc()
}
