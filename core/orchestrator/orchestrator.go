package orchestrator

import (
	"context"
	"errors"
	"time"

	"freelance-workflow/core/effects"
	"freelance-workflow/core/fees"
	"freelance-workflow/core/matcher"
	"freelance-workflow/core/models"
	"freelance-workflow/core/repository"
	"freelance-workflow/core/revision"
	"freelance-workflow/core/workflow"
	"freelance-workflow/core/workload"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultRevisionLimit applies when a new task does not set its own limit
const DefaultRevisionLimit = 2

// Metrics receives workflow counters
type Metrics interface {
	ObserveTransition(from, to models.TaskStatus)
	ObserveReassignment()
	ObserveConflict(action string)
	ObservePayment(p *models.Payment)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransition(models.TaskStatus, models.TaskStatus) {}
func (noopMetrics) ObserveReassignment()                                   {}
func (noopMetrics) ObserveConflict(string)                                 {}
func (noopMetrics) ObservePayment(*models.Payment)                         {}

// Options carries the policy values the orchestrator is built with
type Options struct {
	CommissionPct     decimal.Decimal
	RevisionLimit     int
	RevisionExtension time.Duration
}

// Result is what every successful action returns
type Result struct {
	Task    *models.Task
	Payment *models.Payment
	Effects []models.EffectOutcome
}

// Orchestrator sequences the workflow components for each caller-visible
// action. Each action commits at most once; side effects are dispatched
// after the commit and never undo it.
type Orchestrator struct {
	store         repository.Store
	stateMachine  *workflow.StateMachine
	matcher       *matcher.Matcher
	tracker       *workload.Tracker
	ledger        *revision.Ledger
	fees          *fees.Calculator
	dispatcher    *effects.Dispatcher
	metrics       Metrics
	revisionLimit int
	log           *logrus.Entry
}

// NewOrchestrator wires the workflow components around store. dispatcher and
// metrics may be nil.
func NewOrchestrator(
	store repository.Store,
	dispatcher *effects.Dispatcher,
	metrics Metrics,
	opts Options,
	log *logrus.Entry,
) (*Orchestrator, error) {
	calc, err := fees.NewCalculator(opts.CommissionPct)
	if err != nil {
		return nil, err
	}
	if opts.RevisionLimit < 0 {
		return nil, &models.ValidationError{Field: "revision_limit", Value: opts.RevisionLimit, Message: "must not be negative"}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	sm := workflow.NewStateMachine()
	return &Orchestrator{
		store:         store,
		stateMachine:  sm,
		matcher:       matcher.NewMatcher(store),
		tracker:       workload.NewTracker(store),
		ledger:        revision.NewLedger(sm, opts.RevisionExtension),
		fees:          calc,
		dispatcher:    dispatcher,
		metrics:       metrics,
		revisionLimit: opts.RevisionLimit,
		log:           log,
	}, nil
}

// SetClock replaces the clock used for milestones, events and payments
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.stateMachine.Now = now
	o.fees.SetClock(now)
}

// plan is the outcome of an action before it is committed
type plan struct {
	change repository.Change
	reason string
	meta   map[string]interface{}
	notify []models.Notification
}

// guard rejects actors that may not perform an action on task
type guard func(actor models.Actor, task *models.Task) error

// planner computes the change for the task as it was loaded
type planner func(ctx context.Context, task *models.Task) (*plan, error)

// run loads the task, checks the guard, commits the planned change and
// dispatches its side effects
func (o *Orchestrator) run(ctx context.Context, action string, actor models.Actor, taskID string, allow guard, build planner) (*Result, error) {
	log := o.log.WithField("operation", "orchestrator."+action).
		WithField("task_id", taskID).
		WithField("actor_id", actor.ID)

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := allow(actor, task); err != nil {
		log.WithError(err).Debug("action not allowed")
		return nil, err
	}

	p, err := build(ctx, task)
	if err != nil {
		log.WithError(err).Debug("action rejected")
		return nil, err
	}
	if p.change.Event == nil {
		p.change.Event = o.event(task, p.change.Task, actor, p.reason, p.meta)
	}

	if err := o.store.Commit(ctx, p.change); err != nil {
		if errors.Is(err, models.ErrConflict) {
			o.metrics.ObserveConflict(action)
		}
		log.WithError(err).Info("commit failed")
		return nil, err
	}
	if task.Status != p.change.Task.Status {
		o.metrics.ObserveTransition(task.Status, p.change.Task.Status)
	}
	if p.change.Payment != nil {
		o.metrics.ObservePayment(p.change.Payment)
	}

	log.WithField("status", p.change.Task.Status).Info("task updated")

	return &Result{
		Task:    p.change.Task,
		Payment: p.change.Payment,
		Effects: o.dispatch(ctx, action, actor, task, p.change.Task, p.notify),
	}, nil
}

// transitionTo plans a plain status change with no other writes
func (o *Orchestrator) transitionTo(to models.TaskStatus, reason string, notify func(next *models.Task) []models.Notification) planner {
	return func(_ context.Context, task *models.Task) (*plan, error) {
		next, err := o.stateMachine.Transition(task, to)
		if err != nil {
			return nil, err
		}
		p := &plan{change: repository.NewChange(task, next), reason: reason}
		if notify != nil {
			p.notify = notify(next)
		}
		return p, nil
	}
}

func (o *Orchestrator) event(before, after *models.Task, actor models.Actor, reason string, meta map[string]interface{}) *models.TaskEvent {
	from := before.Status
	return &models.TaskEvent{
		TaskID:     after.ID,
		At:         o.stateMachine.Now(),
		FromStatus: &from,
		ToStatus:   after.Status,
		ActorID:    actor.ID,
		Reason:     reason,
		Meta:       meta,
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, action string, actor models.Actor, before, after *models.Task, notify []models.Notification) []models.EffectOutcome {
	if o.dispatcher == nil {
		return nil
	}
	return o.dispatcher.Dispatch(ctx, after.ID, buildEffects(action, actor, before, after, notify))
}

// GetTask returns a task the actor is allowed to see
func (o *Orchestrator) GetTask(ctx context.Context, actor models.Actor, taskID string) (*models.Task, error) {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks lists tasks visible to the actor. Clients only see their own
// tasks; freelancers see open tasks or the ones they hold.
func (o *Orchestrator) ListTasks(ctx context.Context, actor models.Actor, filter models.TaskFilter) ([]*models.Task, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleClient:
		filter.ClientID = actor.ID
	case models.RoleFreelancer:
		open := filter.Status != nil && *filter.Status == models.TaskStatusUnderReview
		if !open {
			filter.FreelancerID = actor.ID
		}
	default:
		return nil, &models.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "list tasks"}
	}
	return o.store.ListTasks(ctx, filter)
}

// TaskHistory returns the task's recorded transitions, newest first
func (o *Orchestrator) TaskHistory(ctx context.Context, actor models.Actor, taskID string, limit int) ([]models.TaskEvent, error) {
	if _, err := o.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return o.store.ListTaskEvents(ctx, taskID, limit)
}

// TaskPayment returns the escrow payment of a completed task
func (o *Orchestrator) TaskPayment(ctx context.Context, actor models.Actor, taskID string) (*models.Payment, error) {
	if _, err := o.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return o.store.GetPayment(ctx, taskID)
}
