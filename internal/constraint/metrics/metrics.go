// Package metrics exposes Prometheus counters for the constraint engine.
// All methods are nil-safe so callers can skip metrics wiring in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	constraintsCreated prometheus.Counter
	constraintsUpdated prometheus.Counter
	constraintsDeleted prometheus.Counter
	evaluationsTotal   *prometheus.CounterVec
	methodsBlocked     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		constraintsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "constraints_created_total",
			Help: "Number of constraints created.",
		}),
		constraintsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "constraints_updated_total",
			Help: "Number of constraints updated.",
		}),
		constraintsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "constraints_deleted_total",
			Help: "Number of constraints deleted.",
		}),
		evaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "constraint_evaluations_total",
			Help: "Number of checkout evaluations by target type.",
		}, []string{"target_type"}),
		methodsBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "constraint_methods_blocked_total",
			Help: "Number of methods blocked during evaluation, by target type.",
		}, []string{"target_type"}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "constraint_evaluation_duration_seconds",
			Help:    "Latency of a full blocked-methods computation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ConstraintCreated() {
	if m == nil {
		return
	}
	m.constraintsCreated.Inc()
}

func (m *Metrics) ConstraintUpdated() {
	if m == nil {
		return
	}
	m.constraintsUpdated.Inc()
}

func (m *Metrics) ConstraintDeleted() {
	if m == nil {
		return
	}
	m.constraintsDeleted.Inc()
}

func (m *Metrics) Evaluation(targetType string) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(targetType).Inc()
}

func (m *Metrics) MethodsBlocked(targetType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.methodsBlocked.WithLabelValues(targetType).Add(float64(n))
}

func (m *Metrics) ObserveEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.evaluationDuration.Observe(seconds)
}
