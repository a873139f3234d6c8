package workload

import (
	"context"

	"freelance-workflow/core/models"
)

// FreelancerReader loads freelancer profiles
type FreelancerReader interface {
	GetFreelancer(ctx context.Context, id string) (*models.Freelancer, error)
}

// Tracker checks freelancer capacity and produces the counter deltas that
// are committed together with the task change they belong to
type Tracker struct {
	freelancers FreelancerReader
}

// NewTracker creates a workload tracker
func NewTracker(freelancers FreelancerReader) *Tracker {
	return &Tracker{freelancers: freelancers}
}

// Check loads the freelancer and verifies it can take one more task
func (t *Tracker) Check(ctx context.Context, freelancerID string) (*models.Freelancer, error) {
	f, err := t.freelancers.GetFreelancer(ctx, freelancerID)
	if err != nil {
		return nil, err
	}
	if f.Status != models.FreelancerStatusActive || !f.HasCapacity() {
		return nil, &models.WorkloadExceededError{
			FreelancerID: f.ID,
			Current:      f.CurrentActiveTasks,
			Max:          f.MaxActiveTasks,
		}
	}
	return f, nil
}

// Acquire returns the delta for giving freelancerID one more active task
func Acquire(freelancerID string) models.WorkloadDelta {
	return models.WorkloadDelta{FreelancerID: freelancerID, Delta: 1}
}

// Release returns the delta for freeing one of freelancerID's tasks
func Release(freelancerID string) models.WorkloadDelta {
	return models.WorkloadDelta{FreelancerID: freelancerID, Delta: -1}
}

// Transfer returns the deltas for moving a task from one freelancer to
// another. Moving to the same freelancer is a no-op.
func Transfer(from, to string) []models.WorkloadDelta {
	if from == to {
		return nil
	}
	return []models.WorkloadDelta{Release(from), Acquire(to)}
}

// ReleaseHeld returns the release delta for the freelancer holding task, if any
func ReleaseHeld(task *models.Task) []models.WorkloadDelta {
	if task.FreelancerID == nil {
		return nil
	}
	return []models.WorkloadDelta{Release(*task.FreelancerID)}
}
