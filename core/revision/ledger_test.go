package revision

import (
	"errors"
	"testing"
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/workflow"
)

func newLedger() (*Ledger, *workflow.StateMachine) {
	sm := &workflow.StateMachine{Now: func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }}
	return NewLedger(sm, 0), sm
}

func clientRevisionTask(limit int) *models.Task {
	freelancer := "free-1"
	return &models.Task{
		ID:                 "task-1",
		Status:             models.TaskStatusClientRevision,
		FreelancerID:       &freelancer,
		RevisionLimit:      limit,
		Deadline:           time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		WorkflowTimestamps: map[models.Milestone]time.Time{},
	}
}

// redeliver walks an in-progress task back to client_revision
func redeliver(t *testing.T, sm *workflow.StateMachine, task *models.Task) *models.Task {
	t.Helper()
	for _, s := range []models.TaskStatus{
		models.TaskStatusSubmittedWork,
		models.TaskStatusQAReview,
		models.TaskStatusDelivered,
		models.TaskStatusClientRevision,
	} {
		next, err := sm.Transition(task, s)
		if err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
		task = next
	}
	return task
}

func TestIncrementRevision_UpToLimit(t *testing.T) {
	t.Parallel()

	ledger, sm := newLedger()
	task := clientRevisionTask(2)
	start := task.Deadline

	for i := 1; i <= task.RevisionLimit; i++ {
		next, err := ledger.IncrementRevision(task)
		if err != nil {
			t.Fatalf("revision %d: %v", i, err)
		}
		if next.RevisionsUsed != i {
			t.Fatalf("revisionsUsed = %d, want %d", next.RevisionsUsed, i)
		}
		if want := start.Add(time.Duration(i) * 48 * time.Hour); !next.Deadline.Equal(want) {
			t.Fatalf("deadline = %v, want %v", next.Deadline, want)
		}
		if next.Status != models.TaskStatusInProgress {
			t.Fatalf("status = %s, want in_progress", next.Status)
		}
		task = redeliver(t, sm, next)
	}

	before := task.Clone()
	next, err := ledger.IncrementRevision(task)
	var rle *models.RevisionLimitExceededError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RevisionLimitExceededError, got %v", err)
	}
	if rle.Used != 2 || rle.Limit != 2 {
		t.Fatalf("unexpected error context: %+v", rle)
	}
	if next != nil {
		t.Fatalf("expected no task on failure")
	}
	if task.RevisionsUsed != before.RevisionsUsed || !task.Deadline.Equal(before.Deadline) || task.Status != before.Status {
		t.Fatalf("failed increment changed the task")
	}
}

func TestIncrementRevision_ZeroLimit(t *testing.T) {
	t.Parallel()

	ledger, _ := newLedger()
	task := clientRevisionTask(0)
	if CanRequestRevision(task) {
		t.Fatalf("zero limit should not allow revisions")
	}
	if _, err := ledger.IncrementRevision(task); !errors.Is(err, models.ErrRevisionLimitExceeded) {
		t.Fatalf("expected revision limit error, got %v", err)
	}
}

func TestIncrementRevision_WrongStateLeavesTaskUnchanged(t *testing.T) {
	t.Parallel()

	ledger, _ := newLedger()
	task := clientRevisionTask(2)
	task.Status = models.TaskStatusCompleted

	if _, err := ledger.IncrementRevision(task); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if task.RevisionsUsed != 0 || !task.Deadline.Equal(clientRevisionTask(2).Deadline) {
		t.Fatalf("task partially updated: %+v", task)
	}
}

func TestIncrementRevision_CustomExtension(t *testing.T) {
	t.Parallel()

	sm := workflow.NewStateMachine()
	ledger := NewLedger(sm, 24*time.Hour)
	task := clientRevisionTask(1)

	next, err := ledger.IncrementRevision(task)
	if err != nil {
		t.Fatalf("IncrementRevision: %v", err)
	}
	if want := task.Deadline.Add(24 * time.Hour); !next.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", next.Deadline, want)
	}
}

func TestSubmissionTypeFor(t *testing.T) {
	t.Parallel()

	if got := SubmissionTypeFor(0); got != models.SubmissionTypeInitial {
		t.Fatalf("first submission = %s", got)
	}
	if got := SubmissionTypeFor(3); got != models.SubmissionTypeRevision {
		t.Fatalf("later submission = %s", got)
	}
	if Remaining(&models.Task{RevisionLimit: 2, RevisionsUsed: 3}) != 0 {
		t.Fatalf("Remaining must not go negative")
	}
}
