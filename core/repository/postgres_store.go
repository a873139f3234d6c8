package repository

import (
	"context"
	"fmt"
	"time"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on top of the per-table repositories.
// Commit runs in a single SQL transaction.
type PostgresStore struct {
	*TaskRepository
	*FreelancerRepository
	*SubmissionRepository
	*PaymentRepository
	*EventRepository

	db    *DB
	drift DriftObserver
}

// NewPostgresStore creates a store backed by db
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{
		TaskRepository:       NewTaskRepository(db),
		FreelancerRepository: NewFreelancerRepository(db),
		SubmissionRepository: NewSubmissionRepository(db),
		PaymentRepository:    NewPaymentRepository(db),
		EventRepository:      NewEventRepository(db),
		db:                   db,
	}
}

// SetDriftObserver registers o to be told about clamped workload releases
func (s *PostgresStore) SetDriftObserver(o DriftObserver) {
	s.drift = o
}

// ListTaskEvents retrieves a task's history, newest first
func (s *PostgresStore) ListTaskEvents(ctx context.Context, taskID string, limit int) ([]models.TaskEvent, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, nil
	}
	return s.EventRepository.ListTaskEvents(ctx, taskID, limit)
}

// Commit applies change atomically. The task row is guarded by version,
// status and freelancer; workload, payment, submission and event rows are
// written in the same transaction.
func (s *PostgresStore) Commit(ctx context.Context, change Change) error {
	if _, err := uuid.Parse(change.Task.ID); err != nil {
		return fmt.Errorf("task %s: %w", change.Task.ID, models.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	updated, err := updateTaskTx(ctx, tx, change, now)
	if err != nil {
		return fmt.Errorf("update task %s: %w", change.Task.ID, err)
	}
	if !updated {
		exists, err := taskExistsTx(ctx, tx, change.Task.ID)
		if err != nil {
			return fmt.Errorf("check task %s: %w", change.Task.ID, err)
		}
		if !exists {
			return fmt.Errorf("task %s: %w", change.Task.ID, models.ErrNotFound)
		}
		return change.conflictError()
	}

	var drifted []string
	for _, delta := range change.Workload {
		d, err := applyWorkloadTx(ctx, tx, delta)
		if err != nil {
			return err
		}
		if d {
			drifted = append(drifted, delta.FreelancerID)
		}
	}
	if change.Payment != nil {
		if err := insertPayment(ctx, tx, change.Payment); err != nil {
			return err
		}
	}
	if change.Submission != nil {
		if err := insertSubmission(ctx, tx, change.Submission); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
	}
	if change.Event != nil {
		if err := insertTaskEvent(ctx, tx, *change.Event); err != nil {
			return fmt.Errorf("insert task event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task %s: %w", change.Task.ID, err)
	}

	change.Task.Version = change.ExpectedVersion + 1
	change.Task.UpdatedAt = now
	if s.drift != nil {
		for _, id := range drifted {
			s.drift.ObserveWorkloadDrift(id)
		}
	}
	return nil
}
