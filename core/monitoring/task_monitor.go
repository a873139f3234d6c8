package monitoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"freelance-workflow/core/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AtRiskWindow is how close to its deadline an unfinished task is flagged
const AtRiskWindow = 24 * time.Hour

// monitoredStatuses are the statuses in which a task still owes work
var monitoredStatuses = []models.TaskStatus{
	models.TaskStatusUnderReview,
	models.TaskStatusAssigned,
	models.TaskStatusInProgress,
	models.TaskStatusSubmittedWork,
	models.TaskStatusQAReview,
	models.TaskStatusRevisionRequested,
	models.TaskStatusDelivered,
	models.TaskStatusClientRevision,
	models.TaskStatusDisputed,
}

// TaskLister lists tasks by filter
type TaskLister interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
}

// TaskMonitor checks open tasks against their deadlines and tracks how much
// client money is committed to unfinished work
type TaskMonitor struct {
	tasks TaskLister
	now   func() time.Time
	log   *logrus.Entry

	open     *prometheus.GaugeVec
	overdue  prometheus.Gauge
	atRisk   prometheus.Gauge
	exposure prometheus.Gauge
}

// TaskHealth is the deadline view of one task
type TaskHealth struct {
	TaskID       string
	Status       models.TaskStatus
	FreelancerID *string
	Deadline     time.Time
	Remaining    time.Duration // Negative once overdue
	Budget       decimal.Decimal
}

// Report is the result of one scan
type Report struct {
	GeneratedAt    time.Time
	Open           map[models.TaskStatus]int
	Overdue        []TaskHealth
	AtRisk         []TaskHealth
	EscrowExposure decimal.Decimal
}

// NewTaskMonitor creates a task monitor and registers its gauges with reg
func NewTaskMonitor(tasks TaskLister, reg prometheus.Registerer, log *logrus.Entry) *TaskMonitor {
	tm := &TaskMonitor{
		tasks: tasks,
		now:   time.Now,
		log:   log,
		open: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_tasks",
			Help:      "Tasks still owing work, by status, at the last scan",
		}, []string{"status"}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_tasks",
			Help:      "Open tasks past their deadline at the last scan",
		}),
		atRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "at_risk_tasks",
			Help:      "Open tasks due within the at-risk window at the last scan",
		}),
		exposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrow_exposure",
			Help:      "Sum of budgets of open tasks at the last scan",
		}),
	}
	if reg != nil {
		reg.MustRegister(tm.open, tm.overdue, tm.atRisk, tm.exposure)
	}
	return tm
}

// SetClock replaces the time source
func (tm *TaskMonitor) SetClock(now func() time.Time) {
	tm.now = now
}

// Scan reads every open task once and refreshes the gauges
func (tm *TaskMonitor) Scan(ctx context.Context) (*Report, error) {
	const op = "monitoring.TaskMonitor.Scan"
	log := tm.log.WithField("operation", op)

	now := tm.now()
	report := &Report{
		GeneratedAt:    now,
		Open:           make(map[models.TaskStatus]int, len(monitoredStatuses)),
		EscrowExposure: decimal.Zero,
	}

	for _, status := range monitoredStatuses {
		status := status
		tasks, err := tm.tasks.ListTasks(ctx, models.TaskFilter{Status: &status})
		if err != nil {
			return nil, fmt.Errorf("%s: list %s tasks: %w", op, status, err)
		}
		report.Open[status] = len(tasks)

		for _, task := range tasks {
			report.EscrowExposure = report.EscrowExposure.Add(task.Budget)

			health := TaskHealth{
				TaskID:       task.ID,
				Status:       task.Status,
				FreelancerID: task.FreelancerID,
				Deadline:     task.Deadline,
				Remaining:    task.Deadline.Sub(now),
				Budget:       task.Budget,
			}
			switch {
			case health.Remaining < 0:
				report.Overdue = append(report.Overdue, health)
			case health.Remaining <= AtRiskWindow:
				report.AtRisk = append(report.AtRisk, health)
			}
		}
	}

	byDeadline := func(list []TaskHealth) {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].Deadline.Equal(list[j].Deadline) {
				return list[i].Deadline.Before(list[j].Deadline)
			}
			return list[i].TaskID < list[j].TaskID
		})
	}
	byDeadline(report.Overdue)
	byDeadline(report.AtRisk)

	for status, n := range report.Open {
		tm.open.WithLabelValues(string(status)).Set(float64(n))
	}
	tm.overdue.Set(float64(len(report.Overdue)))
	tm.atRisk.Set(float64(len(report.AtRisk)))
	tm.exposure.Set(report.EscrowExposure.InexactFloat64())

	if len(report.Overdue) > 0 {
		log.WithField("overdue", len(report.Overdue)).Warn("open tasks past deadline")
	}
	return report, nil
}
