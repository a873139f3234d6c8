package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const taskColumns = `
	id, client_id, freelancer_id, title, description, category, status,
	budget, deadline_at, revision_limit, revisions_used, priority,
	workflow_timestamps, reassignment_count, version, created_at, updated_at`

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTask inserts a new task at version 1 and logs its creation event
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	taskID := uuid.New()
	if task.ID != "" {
		var err error
		taskID, err = uuid.Parse(task.ID)
		if err != nil {
			return &models.ValidationError{Field: "id", Value: task.ID, Message: "must be a UUID"}
		}
	}
	if task.WorkflowTimestamps == nil {
		task.WorkflowTimestamps = make(map[models.Milestone]time.Time)
	}
	timestamps, err := json.Marshal(task.WorkflowTimestamps)
	if err != nil {
		return fmt.Errorf("encode workflow timestamps: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `
		INSERT INTO tasks (
			id, client_id, freelancer_id, title, description, category, status,
			budget, deadline_at, revision_limit, revisions_used, priority,
			workflow_timestamps, reassignment_count, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $15
		)
	`
	_, err = tx.ExecContext(ctx, query,
		taskID,
		task.ClientID,
		nullableString(task.FreelancerID),
		task.Title,
		task.Description,
		task.Category,
		task.Status,
		task.Budget,
		task.Deadline,
		task.RevisionLimit,
		task.RevisionsUsed,
		task.Priority,
		timestamps,
		task.ReassignmentCount,
		now,
	)
	if err != nil {
		return err
	}

	task.ID = taskID.String()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := insertTaskEvent(ctx, tx, models.TaskEvent{
		TaskID:   task.ID,
		ToStatus: task.Status,
		ActorID:  task.ClientID,
		Reason:   "task_created",
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// GetTask retrieves a task by ID
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return task, err
}

// ListTasks lists tasks with optional filters, newest first
func (r *TaskRepository) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE TRUE`
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.ClientID != "" {
		query += fmt.Sprintf(" AND client_id = $%d", argIndex)
		args = append(args, filter.ClientID)
		argIndex++
	}
	if filter.FreelancerID != "" {
		query += fmt.Sprintf(" AND freelancer_id = $%d", argIndex)
		args = append(args, filter.FreelancerID)
		argIndex++
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// updateTaskTx writes the new task value only if the stored row still
// matches the change preconditions. It reports whether a row was updated.
func updateTaskTx(ctx context.Context, q querier, change Change, now time.Time) (bool, error) {
	task := change.Task
	timestamps, err := json.Marshal(task.WorkflowTimestamps)
	if err != nil {
		return false, fmt.Errorf("encode workflow timestamps: %w", err)
	}

	query := `
		UPDATE tasks SET
			status = $1, freelancer_id = $2, deadline_at = $3, revisions_used = $4,
			workflow_timestamps = $5, reassignment_count = $6,
			version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9 AND status = $10
			AND freelancer_id IS NOT DISTINCT FROM $11
	`
	res, err := q.ExecContext(ctx, query,
		task.Status,
		nullableString(task.FreelancerID),
		task.Deadline,
		task.RevisionsUsed,
		timestamps,
		task.ReassignmentCount,
		now,
		task.ID,
		change.ExpectedVersion,
		change.ExpectedStatus,
		nullableString(change.ExpectedFreelancer),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// taskExistsTx reports whether a task row with id is present
func taskExistsTx(ctx context.Context, q querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var freelancerID sql.NullString
	var timestamps []byte

	err := row.Scan(
		&task.ID,
		&task.ClientID,
		&freelancerID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Status,
		&task.Budget,
		&task.Deadline,
		&task.RevisionLimit,
		&task.RevisionsUsed,
		&task.Priority,
		&timestamps,
		&task.ReassignmentCount,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if freelancerID.Valid {
		task.FreelancerID = &freelancerID.String
	}
	task.WorkflowTimestamps = make(map[models.Milestone]time.Time)
	if len(timestamps) > 0 {
		if err := json.Unmarshal(timestamps, &task.WorkflowTimestamps); err != nil {
			return nil, fmt.Errorf("decode workflow timestamps for task %s: %w", task.ID, err)
		}
	}
	return &task, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
