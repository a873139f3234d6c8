package fees

import (
	"time"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Fees is the split of a task budget between platform and freelancer
type Fees struct {
	Fee    decimal.Decimal
	Payout decimal.Decimal
}

// ComputeFees splits budget using commissionPct (0 - 100).
// The fee is rounded half-up to cents; the payout is budget minus fee, so
// Fee + Payout == budget exactly.
func ComputeFees(budget, commissionPct decimal.Decimal) (Fees, error) {
	if err := ValidateBudget(budget); err != nil {
		return Fees{}, err
	}
	if err := ValidateCommission(commissionPct); err != nil {
		return Fees{}, err
	}

	// Round is half away from zero, which is half-up for non-negative values
	fee := budget.Mul(commissionPct).Div(hundred).Round(2)
	payout := budget.Sub(fee)

	return Fees{Fee: fee, Payout: payout}, nil
}

// ValidateBudget checks that budget is positive with at most two decimals
func ValidateBudget(budget decimal.Decimal) error {
	if !budget.IsPositive() {
		return &models.ValidationError{Field: "budget", Value: budget.String(), Message: "must be positive"}
	}
	if !budget.Equal(budget.Truncate(2)) {
		return &models.ValidationError{Field: "budget", Value: budget.String(), Message: "must have at most 2 decimal places"}
	}
	return nil
}

// CommissionPlaces is the precision a commission percentage is stored with
const CommissionPlaces = 4

// ValidateCommission checks that pct is within [0, 100] with at most
// CommissionPlaces decimals
func ValidateCommission(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return &models.ValidationError{Field: "commission_pct", Value: pct.String(), Message: "must be between 0 and 100"}
	}
	if !pct.Equal(pct.Truncate(CommissionPlaces)) {
		return &models.ValidationError{Field: "commission_pct", Value: pct.String(), Message: "must have at most 4 decimal places"}
	}
	return nil
}

// Calculator builds payment records with the platform commission captured
// at construction time
type Calculator struct {
	commissionPct decimal.Decimal
	now           func() time.Time
}

// NewCalculator creates a fee calculator for commissionPct
func NewCalculator(commissionPct decimal.Decimal) (*Calculator, error) {
	if err := ValidateCommission(commissionPct); err != nil {
		return nil, err
	}
	return &Calculator{
		commissionPct: commissionPct,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock replaces the time source for payment records
func (c *Calculator) SetClock(now func() time.Time) {
	c.now = now
}

// CommissionPct returns the configured platform commission
func (c *Calculator) CommissionPct() decimal.Decimal {
	return c.commissionPct
}

// NewPayment builds the payment record for a task entering completed.
// Funds start held in escrow.
func (c *Calculator) NewPayment(task *models.Task) (*models.Payment, error) {
	if task.FreelancerID == nil {
		return nil, &models.ValidationError{Field: "freelancer_id", Value: nil, Message: "completed task has no freelancer"}
	}

	split, err := ComputeFees(task.Budget, c.commissionPct)
	if err != nil {
		return nil, err
	}

	return &models.Payment{
		ID:                    uuid.New().String(),
		TaskID:                task.ID,
		ClientID:              task.ClientID,
		FreelancerID:          *task.FreelancerID,
		TaskBudget:            task.Budget,
		PlatformCommissionPct: c.commissionPct,
		PlatformFee:           split.Fee,
		FreelancerPayout:      split.Payout,
		EscrowStatus:          models.EscrowStatusHeld,
		CreatedAt:             c.now(),
	}, nil
}
