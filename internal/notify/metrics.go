package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts best-effort notification delivery.
type Metrics struct {
	Published    *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	BufferDepth  prometheus.Gauge
	CircuitState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_notifications_published_total",
			Help: "Events delivered to a sink",
		}, []string{"sink"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_notifications_dropped_total",
			Help: "Events discarded without delivery by reason",
		}, []string{"reason"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_notifications_failures_total",
			Help: "Failed delivery attempts by sink",
		}, []string{"sink"}),
		BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reliefops_notifications_buffer_depth",
			Help: "Events waiting in the publisher buffer",
		}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reliefops_notifications_circuit_open",
			Help: "1 while delivery is suspended after repeated sink failures",
		}),
	}
}

func (m *Metrics) IncPublished(sink string, n int) {
	if m != nil {
		m.Published.WithLabelValues(sink).Add(float64(n))
	}
}

func (m *Metrics) IncDropped(reason string, n int) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) IncFailure(sink string) {
	if m != nil {
		m.Failures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) SetBufferDepth(n int) {
	if m != nil {
		m.BufferDepth.Set(float64(n))
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitState.Set(1)
		return
	}
	m.CircuitState.Set(0)
}
