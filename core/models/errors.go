package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. The typed errors below match them.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflict               = errors.New("concurrent modification")
	ErrAssignmentConflict     = errors.New("assignment conflict")
	ErrNoEligibleCandidate    = errors.New("no eligible candidate")
	ErrWorkloadExceeded       = errors.New("workload exceeded")
	ErrRevisionLimitExceeded  = errors.New("revision limit exceeded")
	ErrValidation             = errors.New("validation failed")
	ErrForbidden              = errors.New("forbidden")
	ErrPaymentExists          = errors.New("payment already recorded")
)

// InvalidStateTransitionError is returned when the transition table
// does not allow moving from Current to Requested
type InvalidStateTransitionError struct {
	Current   TaskStatus
	Requested TaskStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.Current, e.Requested)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// AssignmentConflictError is returned when another request claimed or
// released the task between read and commit
type AssignmentConflictError struct {
	TaskID             string
	ExpectedStatus     TaskStatus
	ExpectedFreelancer string
}

func (e *AssignmentConflictError) Error() string {
	return fmt.Sprintf("assignment conflict on task %s: expected status %s freelancer %q no longer holds",
		e.TaskID, e.ExpectedStatus, e.ExpectedFreelancer)
}

func (e *AssignmentConflictError) Is(target error) bool {
	return target == ErrAssignmentConflict || target == ErrConflict
}

// ConcurrentModificationError is returned when a non-assignment change
// lost a race on the task version
type ConcurrentModificationError struct {
	TaskID          string
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("task %s was modified concurrently (expected version %d)", e.TaskID, e.ExpectedVersion)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConflict
}

// NoEligibleCandidateError is returned when no freelancer can take a task
type NoEligibleCandidateError struct {
	TaskID   string
	Category string
}

func (e *NoEligibleCandidateError) Error() string {
	return fmt.Sprintf("no eligible freelancer for task %s (category %q)", e.TaskID, e.Category)
}

func (e *NoEligibleCandidateError) Is(target error) bool {
	return target == ErrNoEligibleCandidate
}

// WorkloadExceededError is returned when a freelancer is at capacity
type WorkloadExceededError struct {
	FreelancerID string
	Current      int
	Max          int
}

func (e *WorkloadExceededError) Error() string {
	return fmt.Sprintf("freelancer %s is at capacity (%d/%d active tasks)", e.FreelancerID, e.Current, e.Max)
}

func (e *WorkloadExceededError) Is(target error) bool {
	return target == ErrWorkloadExceeded
}

// RevisionLimitExceededError is returned when no revisions remain
type RevisionLimitExceededError struct {
	TaskID string
	Used   int
	Limit  int
}

func (e *RevisionLimitExceededError) Error() string {
	return fmt.Sprintf("task %s has used all revisions (%d/%d)", e.TaskID, e.Used, e.Limit)
}

func (e *RevisionLimitExceededError) Is(target error) bool {
	return target == ErrRevisionLimitExceeded
}

// ValidationError is returned for malformed input
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ForbiddenError is returned when the actor may not perform the action
type ForbiddenError struct {
	ActorID string
	Role    Role
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s may not %s", e.Role, e.ActorID, e.Action)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
