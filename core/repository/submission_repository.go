package repository

import (
	"context"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
)

// SubmissionRepository handles database operations for submitted work
type SubmissionRepository struct {
	db *DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListSubmissions retrieves submissions for a task in version order
func (r *SubmissionRepository) ListSubmissions(ctx context.Context, taskID string) ([]models.Submission, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, nil
	}
	query := `
		SELECT id, task_id, freelancer_id, version, submission_type, notes, created_at
		FROM submissions
		WHERE task_id = $1
		ORDER BY version
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		var s models.Submission
		err := rows.Scan(
			&s.ID,
			&s.TaskID,
			&s.FreelancerID,
			&s.Version,
			&s.SubmissionType,
			&s.Notes,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}

	return submissions, rows.Err()
}

func insertSubmission(ctx context.Context, q querier, s *models.Submission) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO submissions (id, task_id, freelancer_id, version, submission_type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query, s.ID, s.TaskID, s.FreelancerID, s.Version, s.SubmissionType, s.Notes, s.CreatedAt)
	return err
}
