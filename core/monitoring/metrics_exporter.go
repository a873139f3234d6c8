package monitoring

import (
	"freelance-workflow/core/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "freelance_workflow"

// MetricsExporter exposes workflow counters for Prometheus/Grafana
type MetricsExporter struct {
	transitions    *prometheus.CounterVec
	reassignments  prometheus.Counter
	conflicts      *prometheus.CounterVec
	effectFailures *prometheus.CounterVec
	payments       prometheus.Counter
	platformFees   prometheus.Counter
	payouts        prometheus.Counter
	workloadDrift  prometheus.Counter
}

// NewMetricsExporter creates the workflow metrics and registers them with reg
func NewMetricsExporter(reg prometheus.Registerer) *MetricsExporter {
	me := &MetricsExporter{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Committed task status transitions",
		}, []string{"from", "to"}),
		reassignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_reassignments_total",
			Help:      "Tasks moved from one freelancer to another",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_conflicts_total",
			Help:      "Commits rejected because the task changed since it was read",
		}, []string{"action"}),
		effectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_failures_total",
			Help:      "Side effects that could not be delivered",
		}, []string{"kind"}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Escrow payments recorded at task completion",
		}),
		platformFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_fees_total",
			Help:      "Platform commission collected",
		}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freelancer_payouts_total",
			Help:      "Amount held in escrow for freelancers",
		}),
		workloadDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workload_drift_total",
			Help:      "Workload releases that would have taken an active task counter below zero",
		}),
	}

	reg.MustRegister(
		me.transitions,
		me.reassignments,
		me.conflicts,
		me.effectFailures,
		me.payments,
		me.platformFees,
		me.payouts,
		me.workloadDrift,
	)
	return me
}

// ObserveTransition counts one committed status change
func (me *MetricsExporter) ObserveTransition(from, to models.TaskStatus) {
	me.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveReassignment counts one reassignment
func (me *MetricsExporter) ObserveReassignment() {
	me.reassignments.Inc()
}

// ObserveConflict counts a lost check-and-set for action
func (me *MetricsExporter) ObserveConflict(action string) {
	me.conflicts.WithLabelValues(action).Inc()
}

// ObserveEffectFailure counts an undelivered side effect
func (me *MetricsExporter) ObserveEffectFailure(kind models.EffectKind) {
	me.effectFailures.WithLabelValues(string(kind)).Inc()
}

// ObservePayment records the split of a completed task's budget
func (me *MetricsExporter) ObservePayment(p *models.Payment) {
	me.payments.Inc()
	me.platformFees.Add(amount(p.PlatformFee))
	me.payouts.Add(amount(p.FreelancerPayout))
}

// ObserveWorkloadDrift counts a release clamped at zero. The freelancer is
// not a label to keep cardinality bounded.
func (me *MetricsExporter) ObserveWorkloadDrift(string) {
	me.workloadDrift.Inc()
}

func amount(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
