package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PaymentRepository handles database operations for payments
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetPayment retrieves the payment recorded for a task
func (r *PaymentRepository) GetPayment(ctx context.Context, taskID string) (*models.Payment, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, fmt.Errorf("payment for task %s: %w", taskID, models.ErrNotFound)
	}
	query := `
		SELECT id, task_id, client_id, freelancer_id, task_budget, platform_commission_pct,
			platform_fee, freelancer_payout, escrow_status, created_at
		FROM payments
		WHERE task_id = $1
	`

	var p models.Payment
	err := r.db.QueryRowContext(ctx, query, taskID).Scan(
		&p.ID,
		&p.TaskID,
		&p.ClientID,
		&p.FreelancerID,
		&p.TaskBudget,
		&p.PlatformCommissionPct,
		&p.PlatformFee,
		&p.FreelancerPayout,
		&p.EscrowStatus,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment for task %s: %w", taskID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPayment(ctx context.Context, q querier, p *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, task_id, client_id, freelancer_id, task_budget, platform_commission_pct,
			platform_fee, freelancer_payout, escrow_status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := q.ExecContext(ctx, query,
		p.ID,
		p.TaskID,
		p.ClientID,
		p.FreelancerID,
		p.TaskBudget,
		p.PlatformCommissionPct,
		p.PlatformFee,
		p.FreelancerPayout,
		p.EscrowStatus,
		p.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("task %s: %w", p.TaskID, models.ErrPaymentExists)
	}
	return err
}
