package workload

import (
	"context"
	"errors"
	"testing"

	"freelance-workflow/core/models"
	"freelance-workflow/core/repository"
)

func TestTrackerCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := repository.NewMemoryStore()
	for _, f := range []*models.Freelancer{
		{ID: "open", Status: models.FreelancerStatusActive, CurrentActiveTasks: 1, MaxActiveTasks: 2},
		{ID: "full", Status: models.FreelancerStatusActive, CurrentActiveTasks: 2, MaxActiveTasks: 2},
		{ID: "away", Status: models.FreelancerStatusInactive, MaxActiveTasks: 2},
	} {
		if err := store.CreateFreelancer(ctx, f); err != nil {
			t.Fatalf("CreateFreelancer: %v", err)
		}
	}
	tracker := NewTracker(store)

	if f, err := tracker.Check(ctx, "open"); err != nil || f.ID != "open" {
		t.Fatalf("Check(open) = %v, %v", f, err)
	}

	var wle *models.WorkloadExceededError
	if _, err := tracker.Check(ctx, "full"); !errors.As(err, &wle) {
		t.Fatalf("expected workload exceeded, got %v", err)
	}
	if wle.Current != 2 || wle.Max != 2 {
		t.Fatalf("unexpected context: %+v", wle)
	}
	if _, err := tracker.Check(ctx, "away"); !errors.Is(err, models.ErrWorkloadExceeded) {
		t.Fatalf("inactive freelancer should be rejected, got %v", err)
	}
	if _, err := tracker.Check(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeltas(t *testing.T) {
	t.Parallel()

	if d := Acquire("a"); d.Delta != 1 || d.FreelancerID != "a" {
		t.Fatalf("Acquire = %+v", d)
	}
	if d := Release("a"); d.Delta != -1 {
		t.Fatalf("Release = %+v", d)
	}
	if ds := Transfer("a", "a"); len(ds) != 0 {
		t.Fatalf("self transfer should be empty, got %+v", ds)
	}
	ds := Transfer("a", "b")
	if len(ds) != 2 || ds[0].FreelancerID != "a" || ds[0].Delta != -1 || ds[1].FreelancerID != "b" || ds[1].Delta != 1 {
		t.Fatalf("Transfer = %+v", ds)
	}

	holder := "a"
	if ds := ReleaseHeld(&models.Task{FreelancerID: &holder}); len(ds) != 1 || ds[0].Delta != -1 {
		t.Fatalf("ReleaseHeld = %+v", ds)
	}
	if ds := ReleaseHeld(&models.Task{}); ds != nil {
		t.Fatalf("ReleaseHeld without freelancer = %+v", ds)
	}
}
