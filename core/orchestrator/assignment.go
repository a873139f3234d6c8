package orchestrator

import (
	"context"
	"fmt"

	"freelance-workflow/core/matcher"
	"freelance-workflow/core/models"
	"freelance-workflow/core/repository"
	"freelance-workflow/core/scheduler"
	"freelance-workflow/core/workload"
)

// AutoAssignOutcome is the result of auto-assigning one pending task
type AutoAssignOutcome struct {
	TaskID string
	Result *Result
	Err    error
}

// AssignTask assigns a task under review to freelancerID on behalf of an admin
func (o *Orchestrator) AssignTask(ctx context.Context, actor models.Actor, taskID, freelancerID string) (*Result, error) {
	return o.run(ctx, "task.assign", actor, taskID, adminOnly("assign task"),
		o.assign(freelancerID, "admin_assigned", nil))
}

// AcceptTask lets a freelancer claim an open task. When two freelancers race
// for the same task exactly one wins; the other gets an assignment conflict.
func (o *Orchestrator) AcceptTask(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.accept", actor, taskID, anyFreelancer("accept task"),
		o.assign(actor.ID, "freelancer_accepted", nil))
}

// AutoAssignTask assigns the best scoring eligible freelancer
func (o *Orchestrator) AutoAssignTask(ctx context.Context, actor models.Actor, taskID string) (*Result, error) {
	return o.run(ctx, "task.auto_assign", actor, taskID, adminOnly("auto-assign task"),
		func(ctx context.Context, task *models.Task) (*plan, error) {
			if err := slotFree(task); err != nil {
				return nil, err
			}
			best, err := o.matcher.Match(ctx, task)
			if err != nil {
				return nil, err
			}
			return o.assign(best.Freelancer.ID, "auto_assigned", matchMeta(best))(ctx, task)
		})
}

// AutoAssignPending auto-assigns open tasks, most urgent first. limit caps
// the number of tasks attempted; zero or less means all of them. A failure
// on one task does not stop the others.
func (o *Orchestrator) AutoAssignPending(ctx context.Context, actor models.Actor, limit int) ([]AutoAssignOutcome, error) {
	const op = "orchestrator.AutoAssignPending"
	log := o.log.WithField("operation", op)

	if actor.Role != models.RoleAdmin {
		return nil, forbidden(actor, "auto-assign pending tasks")
	}

	status := models.TaskStatusUnderReview
	pending, err := o.store.ListTasks(ctx, models.TaskFilter{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}

	queue := scheduler.NewTaskQueue()
	for _, task := range pending {
		queue.Enqueue(task)
	}

	var outcomes []AutoAssignOutcome
	for task := queue.PopTask(); task != nil; task = queue.PopTask() {
		if limit > 0 && len(outcomes) == limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		result, err := o.AutoAssignTask(ctx, actor, task.ID)
		outcomes = append(outcomes, AutoAssignOutcome{TaskID: task.ID, Result: result, Err: err})
	}

	log.WithField("pending", len(pending)).WithField("attempted", len(outcomes)).Info("auto-assign pass finished")
	return outcomes, nil
}

// ReassignTask moves an assigned or in-progress task to another freelancer.
// The old freelancer's slot is released and the new one's taken in the same
// commit.
func (o *Orchestrator) ReassignTask(ctx context.Context, actor models.Actor, taskID, freelancerID, reason string) (*Result, error) {
	result, err := o.run(ctx, "task.reassign", actor, taskID, adminOnly("reassign task"),
		func(ctx context.Context, task *models.Task) (*plan, error) {
			if task.Status != models.TaskStatusAssigned && task.Status != models.TaskStatusInProgress {
				return nil, &models.InvalidStateTransitionError{Current: task.Status, Requested: models.TaskStatusAssigned}
			}
			if task.AssignedTo(freelancerID) {
				return nil, &models.ValidationError{Field: "freelancer_id", Value: freelancerID, Message: "task is already assigned to this freelancer"}
			}
			if _, err := o.tracker.Check(ctx, freelancerID); err != nil {
				return nil, err
			}

			released, err := o.stateMachine.Transition(task, models.TaskStatusUnderReview)
			if err != nil {
				return nil, err
			}
			released.FreelancerID = nil

			next, err := o.stateMachine.Transition(released, models.TaskStatusAssigned)
			if err != nil {
				return nil, err
			}
			next.FreelancerID = &freelancerID
			next.ReassignmentCount++

			previous := *task.FreelancerID
			change := repository.NewChange(task, next)
			change.Assignment = true
			change.Workload = workload.Transfer(previous, freelancerID)

			return &plan{
				change: change,
				reason: reassignReason(reason),
				meta: map[string]interface{}{
					"previous_freelancer_id": previous,
					"reassignment_count":     next.ReassignmentCount,
				},
				notify: []models.Notification{
					notice(previous, "task_reassigned", "Task reassigned", "This task has been moved to another freelancer", next),
					notice(freelancerID, "task_assigned", "New task assigned", fmt.Sprintf("You have been assigned %q", next.Title), next),
					notice(next.ClientID, "task_reassigned", "Freelancer changed", "A different freelancer will complete your task", next),
				},
			}, nil
		})
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveReassignment()
	return result, nil
}

// assign plans under_review -> assigned for freelancerID with a workload
// increment in the same commit
func (o *Orchestrator) assign(freelancerID, reason string, meta map[string]interface{}) planner {
	return func(ctx context.Context, task *models.Task) (*plan, error) {
		if err := slotFree(task); err != nil {
			return nil, err
		}
		f, err := o.tracker.Check(ctx, freelancerID)
		if err != nil {
			return nil, err
		}

		next, err := o.stateMachine.Transition(task, models.TaskStatusAssigned)
		if err != nil {
			return nil, err
		}
		next.FreelancerID = &f.ID

		change := repository.NewChange(task, next)
		change.Assignment = true
		change.Workload = []models.WorkloadDelta{workload.Acquire(f.ID)}

		return &plan{
			change: change,
			reason: reason,
			meta:   meta,
			notify: []models.Notification{
				notice(f.ID, "task_assigned", "New task assigned", fmt.Sprintf("You have been assigned %q", next.Title), next),
				notice(next.ClientID, "task_assigned", "Freelancer assigned", fmt.Sprintf("%s will work on your task", displayName(f)), next),
			},
		}, nil
	}
}

// slotFree reports an assignment conflict when someone already holds the task
func slotFree(task *models.Task) error {
	if task.FreelancerID == nil {
		return nil
	}
	return &models.AssignmentConflictError{
		TaskID:             task.ID,
		ExpectedStatus:     models.TaskStatusUnderReview,
		ExpectedFreelancer: "",
	}
}

func matchMeta(c matcher.Candidate) map[string]interface{} {
	return map[string]interface{}{
		"score":           c.Score,
		"performance":     c.Breakdown.Performance,
		"skill_match":     c.Breakdown.SkillMatch,
		"availability":    c.Breakdown.Availability,
		"completion_rate": c.Breakdown.CompletionRate,
	}
}

func reassignReason(reason string) string {
	if reason == "" {
		return "admin_reassigned"
	}
	return reason
}

func displayName(f *models.Freelancer) string {
	if f.Name != "" {
		return f.Name
	}
	return "A freelancer"
}
