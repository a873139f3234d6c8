package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"freelance-workflow/core/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresStore(&DB{DB: sqlDB}), mock
}

func verify(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func storedTask(status models.TaskStatus, freelancerID *string) *models.Task {
	return &models.Task{
		ID:                 uuid.New().String(),
		ClientID:           "client-1",
		FreelancerID:       freelancerID,
		Category:           "go",
		Status:             status,
		Budget:             decimal.RequireFromString("100.00"),
		Deadline:           time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC),
		WorkflowTimestamps: map[models.Milestone]time.Time{},
		Version:            3,
	}
}

var (
	updateTaskSQL  = regexp.QuoteMeta("UPDATE tasks SET")
	taskExistsSQL  = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)")
	acquireSQL     = regexp.QuoteMeta("status = 'active' AND current_active_tasks + $2 <= max_active_tasks")
	releaseSQL     = regexp.QuoteMeta("WHERE id = $1 AND current_active_tasks + $2 >= 0")
	clampSQL       = regexp.QuoteMeta("UPDATE freelancers SET current_active_tasks = 0 WHERE id = $1")
	capacitySQL    = regexp.QuoteMeta("SELECT current_active_tasks, max_active_tasks FROM freelancers")
	insertEventSQL = regexp.QuoteMeta("INSERT INTO task_events")
	insertPaySQL   = regexp.QuoteMeta("INSERT INTO payments")
)

func TestPostgresStore_CommitGuardsTaskRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)
	change := assignChange(before, "free-1")
	change.Event = &models.TaskEvent{TaskID: before.ID, ToStatus: models.TaskStatusAssigned, ActorID: "admin-1"}

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).
		WithArgs(
			string(models.TaskStatusAssigned), "free-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			before.ID, int64(3), string(models.TaskStatusUnderReview), nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(acquireSQL).WithArgs("free-1", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEventSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.Commit(context.Background(), change); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if change.Task.Version != 4 {
		t.Fatalf("committed version = %d, want 4", change.Task.Version)
	}
	verify(t, mock)
}

func TestPostgresStore_CommitStaleReadConflicts(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(taskExistsSQL).WithArgs(before.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.Commit(context.Background(), assignChange(before, "free-1"))
	if !errors.Is(err, models.ErrAssignmentConflict) {
		t.Fatalf("expected assignment conflict, got %v", err)
	}
	verify(t, mock)
}

func TestPostgresStore_CommitMissingTaskIsNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(taskExistsSQL).WithArgs(before.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := s.Commit(context.Background(), assignChange(before, "free-1"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if errors.Is(err, models.ErrConflict) {
		t.Fatalf("missing task reported as conflict: %v", err)
	}
	verify(t, mock)
}

func TestPostgresStore_CommitMalformedIDIsNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)
	before.ID = "not-a-uuid"

	if err := s.Commit(context.Background(), assignChange(before, "free-1")); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	verify(t, mock)
}

func TestPostgresStore_CommitRejectsFullFreelancer(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(acquireSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(capacitySQL).WithArgs("free-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_active_tasks", "max_active_tasks"}).AddRow(2, 2))
	mock.ExpectRollback()

	err := s.Commit(context.Background(), assignChange(before, "free-1"))
	var exceeded *models.WorkloadExceededError
	if !errors.As(err, &exceeded) || exceeded.Current != 2 || exceeded.Max != 2 {
		t.Fatalf("expected workload exceeded at 2/2, got %v", err)
	}
	verify(t, mock)
}

func TestPostgresStore_CommitUnknownFreelancer(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	before := storedTask(models.TaskStatusUnderReview, nil)

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(acquireSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(capacitySQL).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"current_active_tasks", "max_active_tasks"}))
	mock.ExpectRollback()

	if err := s.Commit(context.Background(), assignChange(before, "ghost")); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	verify(t, mock)
}

func TestPostgresStore_ReleaseBelowZeroIsObserved(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	var drift driftLog
	s.SetDriftObserver(&drift)

	freelancer := "free-1"
	before := storedTask(models.TaskStatusInProgress, &freelancer)
	after := before.Clone()
	after.Status = models.TaskStatusCancelled
	change := NewChange(before, after)
	change.Workload = []models.WorkloadDelta{{FreelancerID: freelancer, Delta: -1}}

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(releaseSQL).WithArgs(freelancer, int64(-1)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(clampSQL).WithArgs(freelancer).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Commit(context.Background(), change); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(drift) != 1 || drift[0] != freelancer {
		t.Fatalf("drift observed = %v", drift)
	}
	verify(t, mock)
}

func TestPostgresStore_ReleaseInRangeIsNotDrift(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	var drift driftLog
	s.SetDriftObserver(&drift)

	freelancer := "free-1"
	before := storedTask(models.TaskStatusInProgress, &freelancer)
	after := before.Clone()
	after.Status = models.TaskStatusCancelled
	change := NewChange(before, after)
	change.Workload = []models.WorkloadDelta{{FreelancerID: freelancer, Delta: -1}}

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(releaseSQL).WithArgs(freelancer, int64(-1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Commit(context.Background(), change); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(drift) != 0 {
		t.Fatalf("unexpected drift: %v", drift)
	}
	verify(t, mock)
}

func TestPostgresStore_DuplicatePayment(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	freelancer := "free-1"
	before := storedTask(models.TaskStatusDelivered, &freelancer)
	after := before.Clone()
	after.Status = models.TaskStatusCompleted
	change := NewChange(before, after)
	change.Workload = []models.WorkloadDelta{{FreelancerID: freelancer, Delta: -1}}
	change.Payment = &models.Payment{
		ID:                    uuid.New().String(),
		TaskID:                before.ID,
		ClientID:              before.ClientID,
		FreelancerID:          freelancer,
		TaskBudget:            before.Budget,
		PlatformCommissionPct: decimal.RequireFromString("15"),
		PlatformFee:           decimal.RequireFromString("15.00"),
		FreelancerPayout:      decimal.RequireFromString("85.00"),
		EscrowStatus:          models.EscrowStatusHeld,
		CreatedAt:             before.Deadline,
	}

	mock.ExpectBegin()
	mock.ExpectExec(updateTaskSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(releaseSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertPaySQL).WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key value"})
	mock.ExpectRollback()

	if err := s.Commit(context.Background(), change); !errors.Is(err, models.ErrPaymentExists) {
		t.Fatalf("expected payment exists, got %v", err)
	}
	verify(t, mock)
}
