package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freelance-workflow/core/fees"
	"freelance-workflow/core/models"
	"freelance-workflow/core/repository"
	"freelance-workflow/core/revision"
	"freelance-workflow/core/workload"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewTask is the client input for posting a task
type NewTask struct {
	Title         string
	Description   string
	Category      string
	Budget        decimal.Decimal
	Deadline      time.Time
	Priority      models.Priority
	RevisionLimit *int // Nil uses the platform default
}

// DisputeOutcome is how an admin settles a dispute
type DisputeOutcome string

const (
	// DisputeRework sends the work back through QA
	DisputeRework DisputeOutcome = "rework"
	// DisputeCancel ends the task
	DisputeCancel DisputeOutcome = "cancel"
)

// CreateTask posts a new task for the client. It starts in submitted and
// waits for admin review.
func (o *Orchestrator) CreateTask(ctx context.Context, actor models.Actor, in NewTask) (*Result, error) {
	const op = "orchestrator.CreateTask"
	log := o.log.WithField("operation", op).WithField("actor_id", actor.ID)

	if actor.Role != models.RoleClient {
		return nil, forbidden(actor, "create task")
	}
	task, err := o.newTask(actor, in)
	if err != nil {
		log.WithError(err).Debug("invalid task")
		return nil, err
	}

	if err := o.store.CreateTask(ctx, task); err != nil {
		log.WithError(err).Error("failed to create task")
		return nil, fmt.Errorf("create task: %w", err)
	}
	log.WithField("task_id", task.ID).Info("task created")

	var outcomes []models.EffectOutcome
	if o.dispatcher != nil {
		outcomes = o.dispatcher.Dispatch(ctx, task.ID, buildEffects("task.create", actor, task, task, nil))
	}
	return &Result{Task: task, Effects: outcomes}, nil
}

func (o *Orchestrator) newTask(actor models.Actor, in NewTask) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &models.ValidationError{Field: "title", Value: in.Title, Message: "is required"}
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		return nil, &models.ValidationError{Field: "category", Value: in.Category, Message: "is required"}
	}
	if err := fees.ValidateBudget(in.Budget); err != nil {
		return nil, err
	}
	if !in.Deadline.After(o.stateMachine.Now()) {
		return nil, &models.ValidationError{Field: "deadline", Value: in.Deadline, Message: "must be in the future"}
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, &models.ValidationError{Field: "priority", Value: in.Priority, Message: "must be low, medium, high or urgent"}
	}

	limit := o.revisionLimit
	if in.RevisionLimit != nil {
		limit = *in.RevisionLimit
	}
	if limit < 0 {
		return nil, &models.ValidationError{Field: "revision_limit", Value: limit, Message: "must not be negative"}
	}

	return &models.Task{
		ClientID:           actor.ID,
		Title:              title,
		Description:        in.Description,
		Category:           category,
		Status:             models.TaskStatusSubmitted,
		Budget:             in.Budget,
		Deadline:           in.Deadline.UTC(),
		RevisionLimit:      limit,
		Priority:           priority,
		WorkflowTimestamps: make(map[models.Milestone]time.Time),
	}, nil
}

// ReviewTask lets an admin open a submitted task for assignment or reject it
func (o *Orchestrator) ReviewTask(ctx context.Context, actor models.Actor, taskID string, approve bool, note string) (*Result, error) {
	if approve {
		return o.run(ctx, "task.review", actor, taskID, adminOnly("review task"),
			o.transitionTo(models.TaskStatusUnderReview, "admin_approved",
				notifyClient("task_approved", "Task approved", "Your task is open for freelancers")))
	}
	return o.run(ctx, "task.review", actor, taskID, adminOnly("review task"),
		o.transitionTo(models.TaskStatusCancelled, rejectionReason(note),
			notifyClient("task_rejected", "Task rejected", rejectionReason(note))))
}

// StartTask moves an assigned task into progress
func (o *Orchestrator) StartTask(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.start", actor, taskID, assignedFreelancer("start task"),
		o.transitionTo(models.TaskStatusInProgress, "work_started",
			notifyClient("task_started", "Work started", "The freelancer has started on your task")))
}

// SubmitWork records a submission and hands the work to QA
func (o *Orchestrator) SubmitWork(ctx context.Context, actor models.Actor, taskID, notes string) (*Result, error) {
	return o.run(ctx, "task.submit", actor, taskID, assignedFreelancer("submit work"),
		func(ctx context.Context, task *models.Task) (*plan, error) {
			next, err := o.stateMachine.Transition(task, models.TaskStatusSubmittedWork)
			if err != nil {
				return nil, err
			}
			prior, err := o.store.ListSubmissions(ctx, task.ID)
			if err != nil {
				return nil, fmt.Errorf("list submissions: %w", err)
			}

			submission := &models.Submission{
				ID:             uuid.New().String(),
				TaskID:         task.ID,
				FreelancerID:   *task.FreelancerID,
				Version:        len(prior) + 1,
				SubmissionType: revision.SubmissionTypeFor(len(prior)),
				Notes:          notes,
				CreatedAt:      o.stateMachine.Now(),
			}
			change := repository.NewChange(task, next)
			change.Submission = submission

			return &plan{
				change: change,
				reason: "work_submitted",
				meta: map[string]interface{}{
					"submission_id":   submission.ID,
					"version":         submission.Version,
					"submission_type": string(submission.SubmissionType),
				},
			}, nil
		})
}

// BeginQA starts quality review of submitted work
func (o *Orchestrator) BeginQA(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.qa_begin", actor, taskID, adminOnly("begin QA"),
		o.transitionTo(models.TaskStatusQAReview, "qa_started", nil))
}

// CompleteQA delivers the work to the client or sends it back for rework.
// QA rework does not count against the client's revision limit.
func (o *Orchestrator) CompleteQA(ctx context.Context, actor models.Actor, taskID string, passed bool, note string) (*Result, error) {
	if passed {
		return o.run(ctx, "task.qa_complete", actor, taskID, adminOnly("complete QA"),
			o.transitionTo(models.TaskStatusDelivered, "qa_passed",
				notifyClient("task_delivered", "Work delivered", "Your task is ready for review")))
	}
	return o.run(ctx, "task.qa_complete", actor, taskID, adminOnly("complete QA"),
		o.transitionTo(models.TaskStatusRevisionRequested, qaReason(note),
			notifyFreelancer("qa_changes_requested", "Changes requested", qaReason(note))))
}

// ResumeWork picks QA rework back up
func (o *Orchestrator) ResumeWork(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.resume", actor, taskID, assignedFreelancer("resume work"),
		o.transitionTo(models.TaskStatusInProgress, "rework_started", nil))
}

// RequestRevision sends delivered work back to the freelancer. It consumes
// one revision and pushes the deadline out.
func (o *Orchestrator) RequestRevision(ctx context.Context, actor models.Actor, taskID, reason string) (*Result, error) {
	return o.run(ctx, "task.request_revision", actor, taskID, owningClient("request revision"),
		func(_ context.Context, task *models.Task) (*plan, error) {
			requested, err := o.stateMachine.Transition(task, models.TaskStatusClientRevision)
			if err != nil {
				return nil, err
			}
			next, err := o.ledger.IncrementRevision(requested)
			if err != nil {
				return nil, err
			}

			return &plan{
				change: repository.NewChange(task, next),
				reason: "client_revision",
				meta: map[string]interface{}{
					"revision":       next.RevisionsUsed,
					"revision_limit": next.RevisionLimit,
					"note":           reason,
				},
				notify: notifyFreelancer("revision_requested", "Revision requested",
					fmt.Sprintf("Revision %d of %d: %s", next.RevisionsUsed, next.RevisionLimit, reason))(next),
			}, nil
		})
}

// ApproveTask completes delivered work and records the escrow payment
func (o *Orchestrator) ApproveTask(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.approve", actor, taskID, owningClient("approve task"),
		func(_ context.Context, task *models.Task) (*plan, error) {
			next, err := o.stateMachine.Transition(task, models.TaskStatusCompleted)
			if err != nil {
				return nil, err
			}
			payment, err := o.fees.NewPayment(next)
			if err != nil {
				return nil, err
			}

			change := repository.NewChange(task, next)
			change.Payment = payment
			change.Workload = workload.ReleaseHeld(task)

			return &plan{
				change: change,
				reason: "client_approved",
				meta: map[string]interface{}{
					"payment_id":   payment.ID,
					"platform_fee": payment.PlatformFee.StringFixed(2),
					"payout":       payment.FreelancerPayout.StringFixed(2),
				},
				notify: notifyFreelancer("task_completed", "Task approved", budgetMessage(payment))(next),
			}, nil
		})
}

// OpenDispute escalates delivered work to an admin
func (o *Orchestrator) OpenDispute(ctx context.Context, actor models.Actor, taskID, reason string) (*Result, error) {
	return o.run(ctx, "task.dispute_open", actor, taskID, party("open dispute"),
		func(_ context.Context, task *models.Task) (*plan, error) {
			if strings.TrimSpace(reason) == "" {
				return nil, &models.ValidationError{Field: "reason", Value: reason, Message: "is required"}
			}
			next, err := o.stateMachine.Transition(task, models.TaskStatusDisputed)
			if err != nil {
				return nil, err
			}
			other := next.ClientID
			if actor.ID == next.ClientID {
				other = *next.FreelancerID
			}
			return &plan{
				change: repository.NewChange(task, next),
				reason: reason,
				meta:   map[string]interface{}{"opened_by": string(actor.Role)},
				notify: []models.Notification{notice(other, "dispute_opened", "Dispute opened", reason, next)},
			}, nil
		})
}

// ResolveDispute settles a dispute by sending the work back to QA or by
// cancelling the task
func (o *Orchestrator) ResolveDispute(ctx context.Context, actor models.Actor, taskID string, outcome DisputeOutcome, note string) (*Result, error) {
	return o.run(ctx, "task.dispute_resolve", actor, taskID, adminOnly("resolve dispute"),
		func(_ context.Context, task *models.Task) (*plan, error) {
			switch outcome {
			case DisputeRework:
				next, err := o.stateMachine.Transition(task, models.TaskStatusQAReview)
				if err != nil {
					return nil, err
				}
				return &plan{
					change: repository.NewChange(task, next),
					reason: "dispute_rework",
					meta:   map[string]interface{}{"note": note},
					notify: append(notifyClient("dispute_resolved", "Dispute resolved", "The work goes back through QA")(next),
						notifyFreelancer("dispute_resolved", "Dispute resolved", "The work goes back through QA")(next)...),
				}, nil
			case DisputeCancel:
				p, err := o.cancel(task, "dispute_cancelled")
				if err != nil {
					return nil, err
				}
				p.meta = map[string]interface{}{"note": note}
				return p, nil
			default:
				return nil, &models.ValidationError{Field: "outcome", Value: outcome, Message: "must be rework or cancel"}
			}
		})
}

// CancelTask cancels or releases a task depending on who asks. The assigned
// freelancer hands the task back to the open pool, the owning client cancels
// before work starts, and an admin cancels from any state that allows it.
func (o *Orchestrator) CancelTask(ctx context.Context, actor models.Actor, taskID, reason string) (*Result, error) {
	return o.run(ctx, "task.cancel", actor, taskID, cancelGuard,
		func(_ context.Context, task *models.Task) (*plan, error) {
			if actor.Role == models.RoleFreelancer {
				return o.release(task, reason)
			}
			return o.cancel(task, cancelReason(reason))
		})
}

func cancelGuard(actor models.Actor, task *models.Task) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleFreelancer:
		return assignedFreelancer("cancel task")(actor, task)
	case models.RoleClient:
		if err := owningClient("cancel task")(actor, task); err != nil {
			return err
		}
		switch task.Status {
		case models.TaskStatusSubmitted, models.TaskStatusUnderReview, models.TaskStatusAssigned:
			return nil
		}
		return forbidden(actor, fmt.Sprintf("cancel task in %s", task.Status))
	}
	return forbidden(actor, "cancel task")
}

// release hands a task back to the open pool and frees the freelancer's slot
func (o *Orchestrator) release(task *models.Task, reason string) (*plan, error) {
	next, err := o.stateMachine.Transition(task, models.TaskStatusUnderReview)
	if err != nil {
		return nil, err
	}
	next.FreelancerID = nil

	change := repository.NewChange(task, next)
	change.Assignment = true
	change.Workload = workload.ReleaseHeld(task)

	return &plan{
		change: change,
		reason: "freelancer_released",
		meta:   map[string]interface{}{"previous_freelancer_id": *task.FreelancerID, "note": reason},
		notify: notifyClient("task_released", "Freelancer withdrew", "Your task is open for freelancers again")(next),
	}, nil
}

// cancel ends the task, freeing the holder's slot if there is one
func (o *Orchestrator) cancel(task *models.Task, reason string) (*plan, error) {
	next, err := o.stateMachine.Transition(task, models.TaskStatusCancelled)
	if err != nil {
		return nil, err
	}
	next.FreelancerID = nil

	change := repository.NewChange(task, next)
	change.Workload = workload.ReleaseHeld(task)
	change.Assignment = task.FreelancerID != nil

	notify := notifyClient("task_cancelled", "Task cancelled", reason)(next)
	if task.FreelancerID != nil {
		notify = append(notify, notice(*task.FreelancerID, "task_cancelled", "Task cancelled", reason, next))
	}
	return &plan{change: change, reason: reason, notify: notify}, nil
}

func rejectionReason(note string) string {
	if note == "" {
		return "rejected_by_admin"
	}
	return note
}

func qaReason(note string) string {
	if note == "" {
		return "qa_failed"
	}
	return note
}

func cancelReason(reason string) string {
	if reason == "" {
		return "cancelled"
	}
	return reason
}
