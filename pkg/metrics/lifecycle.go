package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics counts applied state transitions and rejected attempts.
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle counters on reg. A nil reg yields a no-op recorder.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "State transitions applied, by entity.",
	}, []string{"entity", "from", "to"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "rejections_total",
		Help:      "Transition attempts refused, by entity and error code.",
	}, []string{"entity", "code"})
	reg.MustRegister(transitions, rejections)
	return &LifecycleMetrics{transitions: transitions, rejections: rejections}
}

// Transition records one applied transition.
func (m *LifecycleMetrics) Transition(entity, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(entity, normalizeLabel(from), to).Inc()
}

// Rejected records a refused transition.
func (m *LifecycleMetrics) Rejected(entity, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(entity, normalizeLabel(code)).Inc()
}
