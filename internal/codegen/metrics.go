package codegen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts code allocation collisions.
type Metrics struct {
	Collisions *prometheus.CounterVec
	Exhausted  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Collisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_codegen_collisions_total",
			Help: "Reference code collisions that triggered a retry, by entity kind",
		}, []string{"kind"}),
		Exhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_codegen_exhausted_total",
			Help: "Code allocations that gave up after the maximum number of attempts",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementCollision(kind Kind) {
	if m != nil {
		m.Collisions.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) IncrementExhausted(kind Kind) {
	if m != nil {
		m.Exhausted.WithLabelValues(string(kind)).Inc()
	}
}
