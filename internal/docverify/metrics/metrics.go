package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document verification module.
type Metrics struct {
	// State transitions by source and destination state
	Transition *prometheus.CounterVec

	// Encountered failure reasons by code and fatality
	FailureReason *prometheus.CounterVec

	// Sessions reaching a terminal state, by outcome
	SessionOutcome *prometheus.CounterVec
}

// New creates a new Metrics instance with all document verification metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Transition: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_docverify_transitions_total",
			Help: "Total document session state transitions",
		}, []string{"from", "to"}),

		FailureReason: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_docverify_failure_reasons_total",
			Help: "Total encountered failure reasons by code and fatality",
		}, []string{"reason", "fatal"}),

		SessionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_docverify_sessions_total",
			Help: "Total document sessions reaching a terminal state",
		}, []string{"outcome"}),
	}
}

// IncrementTransition records one state transition.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transition.WithLabelValues(from, to).Inc()
	}
}

// IncrementFailureReason records one encountered failure reason.
func (m *Metrics) IncrementFailureReason(reason string, fatal bool) {
	if m != nil {
		label := "false"
		if fatal {
			label = "true"
		}
		m.FailureReason.WithLabelValues(reason, label).Inc()
	}
}

// IncrementSessionOutcome records a terminal session outcome.
func (m *Metrics) IncrementSessionOutcome(outcome string) {
	if m != nil {
		m.SessionOutcome.WithLabelValues(outcome).Inc()
	}
}
