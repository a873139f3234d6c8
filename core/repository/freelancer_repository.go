package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const freelancerColumns = `
	id, name, status, skills, performance_score, on_time_completion_rate,
	current_active_tasks, max_active_tasks, created_at`

// FreelancerRepository handles database operations for freelancer profiles
type FreelancerRepository struct {
	db *DB
}

// NewFreelancerRepository creates a new freelancer repository
func NewFreelancerRepository(db *DB) *FreelancerRepository {
	return &FreelancerRepository{db: db}
}

// CreateFreelancer inserts a freelancer profile
func (r *FreelancerRepository) CreateFreelancer(ctx context.Context, f *models.Freelancer) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO freelancers (
			id, name, status, skills, performance_score, on_time_completion_rate,
			current_active_tasks, max_active_tasks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var rate sql.NullFloat64
	if f.OnTimeCompletionRate != nil {
		rate = sql.NullFloat64{Float64: *f.OnTimeCompletionRate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.Name,
		f.Status,
		pq.Array(f.Skills),
		f.PerformanceScore,
		rate,
		f.CurrentActiveTasks,
		f.MaxActiveTasks,
		f.CreatedAt,
	)
	return err
}

// GetFreelancer retrieves a freelancer by ID
func (r *FreelancerRepository) GetFreelancer(ctx context.Context, id string) (*models.Freelancer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+freelancerColumns+` FROM freelancers WHERE id = $1`, id)
	f, err := scanFreelancer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("freelancer %s: %w", id, models.ErrNotFound)
	}
	return f, err
}

// ListFreelancers lists freelancers matching filter ordered by signup time
func (r *FreelancerRepository) ListFreelancers(ctx context.Context, filter models.FreelancerFilter) ([]*models.Freelancer, error) {
	query := `SELECT ` + freelancerColumns + ` FROM freelancers WHERE TRUE`
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Skill != "" {
		query += fmt.Sprintf(" AND $%d = ANY(skills)", argIndex)
		args = append(args, filter.Skill)
	}
	if filter.WithCapacity {
		query += " AND current_active_tasks < max_active_tasks"
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Freelancer
	for rows.Next() {
		f, err := scanFreelancer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// applyWorkloadTx adjusts one freelancer counter. Increments only succeed
// while the freelancer is active and below capacity. A release that would
// go below zero holds the counter at zero and reports drifted.
func applyWorkloadTx(ctx context.Context, q querier, delta models.WorkloadDelta) (drifted bool, err error) {
	var query string
	if delta.Delta > 0 {
		query = `
			UPDATE freelancers SET current_active_tasks = current_active_tasks + $2
			WHERE id = $1 AND status = 'active' AND current_active_tasks + $2 <= max_active_tasks
		`
	} else {
		query = `
			UPDATE freelancers SET current_active_tasks = current_active_tasks + $2
			WHERE id = $1 AND current_active_tasks + $2 >= 0
		`
	}

	n, err := execAffected(ctx, q, query, delta.FreelancerID, delta.Delta)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if delta.Delta <= 0 {
		n, err = execAffected(ctx, q,
			`UPDATE freelancers SET current_active_tasks = 0 WHERE id = $1`,
			delta.FreelancerID,
		)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, fmt.Errorf("freelancer %s: %w", delta.FreelancerID, models.ErrNotFound)
		}
		return true, nil
	}

	var current, max int
	err = q.QueryRowContext(ctx,
		`SELECT current_active_tasks, max_active_tasks FROM freelancers WHERE id = $1`,
		delta.FreelancerID,
	).Scan(&current, &max)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("freelancer %s: %w", delta.FreelancerID, models.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	return false, &models.WorkloadExceededError{FreelancerID: delta.FreelancerID, Current: current, Max: max}
}

func execAffected(ctx context.Context, q querier, query string, args ...interface{}) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanFreelancer(row rowScanner) (*models.Freelancer, error) {
	var f models.Freelancer
	var rate sql.NullFloat64

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Status,
		pq.Array(&f.Skills),
		&f.PerformanceScore,
		&rate,
		&f.CurrentActiveTasks,
		&f.MaxActiveTasks,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rate.Valid {
		f.OnTimeCompletionRate = &rate.Float64
	}
	return &f, nil
}
