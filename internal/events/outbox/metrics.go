package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Relayed       prometheus.Counter
	RelayFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Relayed: f.NewCounter(prometheus.CounterOpts{
			Name: "idregistry_outbox_relayed_total",
			Help: "Outbox events delivered to every sink",
		}),
		RelayFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "idregistry_outbox_relay_failures_total",
			Help: "Outbox batches that failed to publish or acknowledge",
		}),
	}
}

func (m *Metrics) AddRelayed(n int) {
	if m != nil {
		m.Relayed.Add(float64(n))
	}
}

func (m *Metrics) IncRelayFailures() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}
