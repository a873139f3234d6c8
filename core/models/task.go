package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task represents a unit of work posted by a client
type Task struct {
	ID                 string
	ClientID           string
	FreelancerID       *string // Set iff Status.HoldsFreelancer()
	Title              string
	Description        string
	Category           string // Skill required to work on the task
	Status             TaskStatus
	Budget             decimal.Decimal
	Deadline           time.Time
	RevisionLimit      int
	RevisionsUsed      int
	Priority           Priority
	WorkflowTimestamps map[Milestone]time.Time
	ReassignmentCount  int
	Version            int64 // Bumped on every committed change
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusSubmitted         TaskStatus = "submitted"
	TaskStatusUnderReview       TaskStatus = "under_review"
	TaskStatusAssigned          TaskStatus = "assigned"
	TaskStatusInProgress        TaskStatus = "in_progress"
	TaskStatusSubmittedWork     TaskStatus = "submitted_work"
	TaskStatusQAReview          TaskStatus = "qa_review"
	TaskStatusRevisionRequested TaskStatus = "revision_requested"
	TaskStatusDelivered         TaskStatus = "delivered"
	TaskStatusClientRevision    TaskStatus = "client_revision"
	TaskStatusDisputed          TaskStatus = "disputed"
	TaskStatusCompleted         TaskStatus = "completed"
	TaskStatusCancelled         TaskStatus = "cancelled"
)

// HoldsFreelancer reports whether a task in this status must have a freelancer
func (s TaskStatus) HoldsFreelancer() bool {
	switch s {
	case TaskStatusAssigned,
		TaskStatusInProgress,
		TaskStatusSubmittedWork,
		TaskStatusQAReview,
		TaskStatusRevisionRequested,
		TaskStatusDelivered,
		TaskStatusClientRevision,
		TaskStatusCompleted,
		TaskStatusDisputed:
		return true
	}
	return false
}

// Priority represents how urgently a client needs the task done
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities, higher is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Milestone names a recorded point in the task lifecycle
type Milestone string

const (
	MilestoneAssigned      Milestone = "assignedAt"
	MilestoneStarted       Milestone = "startedAt"
	MilestoneSubmittedWork Milestone = "submittedWorkAt"
	MilestoneDelivered     Milestone = "deliveredAt"
	MilestoneCompleted     Milestone = "completedAt"
	MilestoneCancelled     Milestone = "cancelledAt"
)

// Clone returns a deep copy of the task so callers can mutate it freely
func (t *Task) Clone() *Task {
	c := *t
	if t.FreelancerID != nil {
		id := *t.FreelancerID
		c.FreelancerID = &id
	}
	c.WorkflowTimestamps = make(map[Milestone]time.Time, len(t.WorkflowTimestamps))
	for k, v := range t.WorkflowTimestamps {
		c.WorkflowTimestamps[k] = v
	}
	return &c
}

// AssignedTo reports whether the task is currently held by freelancerID
func (t *Task) AssignedTo(freelancerID string) bool {
	return t.FreelancerID != nil && *t.FreelancerID == freelancerID
}

// TaskFilter narrows task listings
type TaskFilter struct {
	Status       *TaskStatus
	ClientID     string
	FreelancerID string
	Limit        int
}
