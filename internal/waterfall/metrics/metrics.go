package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the waterfall module.
type Metrics struct {
	// Step outcomes by vendor api and action
	StepOutcome *prometheus.CounterVec

	// Vendor call failures by api and normalized category
	VendorError *prometheus.CounterVec

	// Full waterfall run latency
	RunLatency prometheus.Histogram
}

// New creates a new Metrics instance with all waterfall metrics registered.
func New() *Metrics {
	return &Metrics{
		StepOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_waterfall_steps_total",
			Help: "Total waterfall steps by vendor api and action",
		}, []string{"api", "action"}),

		VendorError: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_waterfall_vendor_errors_total",
			Help: "Total vendor call failures by api and error category",
		}, []string{"api", "category"}),

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_waterfall_run_duration_seconds",
			Help:    "Duration of a full waterfall run including vendor calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementStep records a completed step.
func (m *Metrics) IncrementStep(api, action string) {
	if m != nil {
		m.StepOutcome.WithLabelValues(api, action).Inc()
	}
}

// IncrementVendorError records a failed vendor call.
func (m *Metrics) IncrementVendorError(api, category string) {
	if m != nil {
		m.VendorError.WithLabelValues(api, category).Inc()
	}
}

// ObserveRunLatency records the duration of a waterfall run.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
