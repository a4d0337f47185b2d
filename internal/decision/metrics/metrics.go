package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Outcomes by intent kind and resolved status
	Outcome *prometheus.CounterVec

	// Runs that completed with no usable vendor signal
	NoUsableSignal prometheus.Counter

	// End-to-end run_waterfall latency including vendor calls
	RunLatency prometheus.Histogram
}

// New creates a new Metrics instance with all decision metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_decision_outcomes_total",
			Help: "Total decision outcomes by intent kind and status",
		}, []string{"kind", "status"}),

		NoUsableSignal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_decision_no_usable_signal_total",
			Help: "Total waterfall runs where no vendor produced a usable result",
		}),

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_decision_run_duration_seconds",
			Help:    "Duration of run_waterfall including vendor calls and rule evaluation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementOutcome records a resolved decision.
func (m *Metrics) IncrementOutcome(kind, status string) {
	if m != nil {
		m.Outcome.WithLabelValues(kind, status).Inc()
	}
}

// IncrementNoUsableSignal records a run with no usable vendor result.
func (m *Metrics) IncrementNoUsableSignal() {
	if m != nil {
		m.NoUsableSignal.Inc()
	}
}

// ObserveRunLatency records the duration of a run_waterfall call.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
