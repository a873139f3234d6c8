package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowStatus represents the state of funds held for a completed task
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Payment is the fee split recorded when a task is completed.
// PlatformFee + FreelancerPayout always equals TaskBudget.
type Payment struct {
	ID                    string
	TaskID                string
	ClientID              string
	FreelancerID          string
	TaskBudget            decimal.Decimal
	PlatformCommissionPct decimal.Decimal
	PlatformFee           decimal.Decimal
	FreelancerPayout      decimal.Decimal
	EscrowStatus          EscrowStatus
	CreatedAt             time.Time
}

// SubmissionType distinguishes first delivery from rework
type SubmissionType string

const (
	SubmissionTypeInitial  SubmissionType = "initial"
	SubmissionTypeRevision SubmissionType = "revision"
)

// Submission is one delivered version of the work
type Submission struct {
	ID             string
	TaskID         string
	FreelancerID   string
	Version        int
	SubmissionType SubmissionType
	Notes          string
	CreatedAt      time.Time
}
