package repository

import (
	"context"

	"freelance-workflow/core/models"
)

// Store is the persistence collaborator used by the workflow engine.
// Every method touches a single logical unit; Commit is the only write path
// for existing tasks.
type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)

	CreateFreelancer(ctx context.Context, f *models.Freelancer) error
	GetFreelancer(ctx context.Context, id string) (*models.Freelancer, error)
	ListFreelancers(ctx context.Context, filter models.FreelancerFilter) ([]*models.Freelancer, error)

	ListSubmissions(ctx context.Context, taskID string) ([]models.Submission, error)
	GetPayment(ctx context.Context, taskID string) (*models.Payment, error)
	ListTaskEvents(ctx context.Context, taskID string, limit int) ([]models.TaskEvent, error)

	Commit(ctx context.Context, change Change) error
}

// DriftObserver is told when a release would have taken a freelancer's
// active task counter below zero. The counter is held at zero and the
// commit goes through.
type DriftObserver interface {
	ObserveWorkloadDrift(freelancerID string)
}

// Change is one atomic check-and-set on a task together with everything
// that must be written alongside it. Either all of it is applied or none.
type Change struct {
	Task *models.Task // New task value

	// Preconditions checked against the stored task
	ExpectedVersion    int64
	ExpectedStatus     models.TaskStatus
	ExpectedFreelancer *string

	// Assignment marks claim/release changes so a lost race is reported
	// as an assignment conflict
	Assignment bool

	Workload   []models.WorkloadDelta
	Payment    *models.Payment
	Submission *models.Submission
	Event      *models.TaskEvent
}

// NewChange builds a change whose preconditions are taken from the task
// as it was read
func NewChange(before, after *models.Task) Change {
	var expected *string
	if before.FreelancerID != nil {
		id := *before.FreelancerID
		expected = &id
	}
	return Change{
		Task:               after,
		ExpectedVersion:    before.Version,
		ExpectedStatus:     before.Status,
		ExpectedFreelancer: expected,
	}
}

func (c Change) conflictError() error {
	if c.Assignment {
		expected := ""
		if c.ExpectedFreelancer != nil {
			expected = *c.ExpectedFreelancer
		}
		return &models.AssignmentConflictError{
			TaskID:             c.Task.ID,
			ExpectedStatus:     c.ExpectedStatus,
			ExpectedFreelancer: expected,
		}
	}
	return &models.ConcurrentModificationError{TaskID: c.Task.ID, ExpectedVersion: c.ExpectedVersion}
}

func sameFreelancer(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
