package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the shelter ledger.
type Metrics struct {
	OccupancyChanges *prometheus.CounterVec
	Moves            prometheus.Counter
	StatusChanges    *prometheus.CounterVec
	MoveDuration     prometheus.Histogram
}

// New registers the shelter metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OccupancyChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_shelter_occupancy_changes_total",
			Help: "Occupancy increments and decrements applied to shelters",
		}, []string{"direction"}),
		Moves: factory.NewCounter(prometheus.CounterOpts{
			Name: "reliefops_shelter_moves_total",
			Help: "Persons moved between shelters",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefops_shelter_status_changes_total",
			Help: "Shelter status changes by resulting status",
		}, []string{"status"}),
		MoveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reliefops_shelter_move_duration_seconds",
			Help:    "Duration of the move-occupant transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementOccupancy(direction string) {
	if m != nil {
		m.OccupancyChanges.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) IncrementStatusChange(status string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(status).Inc()
	}
}

// ObserveMove records a committed move. Call with time.Now() at the start.
func (m *Metrics) ObserveMove(start time.Time) {
	if m != nil {
		m.Moves.Inc()
		m.MoveDuration.Observe(time.Since(start).Seconds())
	}
}
