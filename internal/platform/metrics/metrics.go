package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa las métricas del motor de placement.
// Todos los métodos aceptan receptor nil (tests / modo sin métricas).
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	Notifications      *prometheus.CounterVec
	ExpiredRequests    prometheus.Counter
}

// New registra las métricas en reg. Pasar prometheus.NewRegistry() en tests
// para no chocar con el registry global.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rehoming_transitions_total",
			Help: "Lifecycle transitions by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}),

		TransitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rehoming_transition_duration_seconds",
			Help:    "Duration of lifecycle transitions including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"entity", "action"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rehoming_notifications_total",
			Help: "Notifications handed to the sink by outcome (sent, failed)",
		}, []string{"outcome"}),

		ExpiredRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "rehoming_expired_requests_total",
			Help: "Placement requests expired by the sweep",
		}),
	}
}

func (m *Metrics) ObserveTransition(entity, action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, action, outcome).Inc()
	m.TransitionDuration.WithLabelValues(entity, action).Observe(d.Seconds())
}

func (m *Metrics) IncNotification(outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddExpired(n int) {
	if m != nil && n > 0 {
		m.ExpiredRequests.Add(float64(n))
	}
}
