package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the coach lifecycle workflow.
type Metrics struct {
	// Workflow outcomes by operation and result
	WorkflowOutcome *prometheus.CounterVec

	// Approval attempts blocked by a checklist item
	ChecklistBlocked *prometheus.CounterVec

	// Notification dispatches by event type and result
	Notifications *prometheus.CounterVec

	// Latency of workflow operations
	OperationLatency *prometheus.HistogramVec
}

// New registers the workflow metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WorkflowOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_console_workflow_outcomes_total",
			Help: "Coach workflow operations by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome: "changed", "noop", "rejected", "error"

		ChecklistBlocked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_console_approval_blocked_total",
			Help: "Approval attempts blocked, by failing checklist item",
		}, []string{"item"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_console_notifications_total",
			Help: "Notification events dispatched by type and result",
		}, []string{"type", "result"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staff_console_operation_duration_seconds",
			Help:    "Duration of workflow operations including the datastore transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncOutcome(operation, outcome string) {
	if m != nil {
		m.WorkflowOutcome.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncChecklistBlocked(item string) {
	if m != nil {
		m.ChecklistBlocked.WithLabelValues(item).Inc()
	}
}

func (m *Metrics) IncNotification(eventType, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(eventType, result).Inc()
	}
}

func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
