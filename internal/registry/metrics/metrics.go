package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	// Operation outcomes by operation and result code ("ok" on success)
	Outcomes *prometheus.CounterVec

	// Operation latency including lock / transaction wait
	Latency *prometheus.HistogramVec

	// Valid approvals seen at transfer attempts
	ApprovalsAtTransfer prometheus.Histogram

	// Post-commit publish failures (state is already committed)
	PublishFailures prometheus.Counter
}

// New registers the registry metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idregistry_operations_total",
			Help: "Registry operations by operation and outcome code",
		}, []string{"operation", "outcome"}),

		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idregistry_operation_duration_seconds",
			Help:    "Duration of registry operations including transaction wait",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		ApprovalsAtTransfer: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idregistry_transfer_valid_approvals",
			Help:    "Unexpired approvals counted when a transfer is attempted",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "idregistry_event_publish_failures_total",
			Help: "Events that could not be handed to the post-commit publisher",
		}),
	}
}

// ObserveOperation records the outcome and latency of one operation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m != nil {
		m.Outcomes.WithLabelValues(op, outcome).Inc()
		m.Latency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveApprovalsAtTransfer(n int) {
	if m != nil {
		m.ApprovalsAtTransfer.Observe(float64(n))
	}
}

func (m *Metrics) IncrementPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
