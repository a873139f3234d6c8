package revision

import (
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/workflow"
)

// DefaultExtension is how far each revision pushes the deadline
const DefaultExtension = 48 * time.Hour

// Ledger bounds rework on a task and extends its deadline per revision
type Ledger struct {
	stateMachine *workflow.StateMachine
	extension    time.Duration
}

// NewLedger creates a revision ledger. A non-positive extension falls back
// to DefaultExtension.
func NewLedger(sm *workflow.StateMachine, extension time.Duration) *Ledger {
	if extension <= 0 {
		extension = DefaultExtension
	}
	return &Ledger{
		stateMachine: sm,
		extension:    extension,
	}
}

// CanRequestRevision reports whether the task has revisions left
func CanRequestRevision(task *models.Task) bool {
	return task.RevisionsUsed < task.RevisionLimit
}

// Remaining returns the number of revisions left on the task
func Remaining(task *models.Task) int {
	if left := task.RevisionLimit - task.RevisionsUsed; left > 0 {
		return left
	}
	return 0
}

// IncrementRevision consumes one revision, moves the deadline forward from
// its current value and resumes work. On error the input is untouched and
// nothing is returned.
func (l *Ledger) IncrementRevision(task *models.Task) (*models.Task, error) {
	if !CanRequestRevision(task) {
		return nil, &models.RevisionLimitExceededError{
			TaskID: task.ID,
			Used:   task.RevisionsUsed,
			Limit:  task.RevisionLimit,
		}
	}

	next, err := l.stateMachine.Transition(task, models.TaskStatusInProgress)
	if err != nil {
		return nil, err
	}
	next.RevisionsUsed++
	next.Deadline = task.Deadline.Add(l.extension)

	return next, nil
}

// SubmissionTypeFor classifies the next submission given how many were
// already recorded for the task
func SubmissionTypeFor(priorSubmissions int) models.SubmissionType {
	if priorSubmissions == 0 {
		return models.SubmissionTypeInitial
	}
	return models.SubmissionTypeRevision
}
