package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rescue operation lifecycle events.
type Metrics struct {
	Created     *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	TeamSize    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_rescue_operations_created_total",
			Help: "Rescue operations created by priority",
		}, []string{"priority"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_rescue_transitions_total",
			Help: "Rescue status transitions by resulting status",
		}, []string{"status"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_rescue_transitions_rejected_total",
			Help: "Rescue status changes refused because the operation was in the wrong state",
		}, []string{"action"}),
		TeamSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reliefops_rescue_team_size",
			Help:    "Size of assigned rescue teams",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 12, 20},
		}),
	}
}

func (m *Metrics) IncrementCreated(priority string) {
	if m != nil {
		m.Created.WithLabelValues(priority).Inc()
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementRejected(action string) {
	if m != nil {
		m.Rejected.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ObserveTeamSize(n int) {
	if m != nil {
		m.TeamSize.Observe(float64(n))
	}
}
