package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the call pipeline.
type Metrics struct {
	Received       *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	RescuesSpawned prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_emergency_calls_received_total",
			Help: "Emergency calls logged by dialled number and urgency",
		}, []string{"call_number", "urgency"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_emergency_call_transitions_total",
			Help: "Emergency call status transitions by resulting status",
		}, []string{"status"}),
		RescuesSpawned: factory.NewCounter(prometheus.CounterOpts{
			Name: "reliefops_emergency_rescues_spawned_total",
			Help: "Rescue operations created while dispatching a call",
		}),
	}
}

func (m *Metrics) IncrementReceived(callNumber, urgency string) {
	if m != nil {
		m.Received.WithLabelValues(callNumber, urgency).Inc()
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementRescueSpawned() {
	if m != nil {
		m.RescuesSpawned.Inc()
	}
}
