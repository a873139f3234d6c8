package workflow

import (
	"sort"
	"time"

	"freelance-workflow/core/models"
)

// allowedTransitions is the full adjacency table. It is never mutated after
// package init; callers only see copies through Successors.
var allowedTransitions = map[models.TaskStatus]map[models.TaskStatus]struct{}{
	models.TaskStatusSubmitted: {
		models.TaskStatusUnderReview: {},
		models.TaskStatusCancelled:   {},
	},
	models.TaskStatusUnderReview: {
		models.TaskStatusAssigned:  {},
		models.TaskStatusCancelled: {},
	},
	models.TaskStatusAssigned: {
		models.TaskStatusInProgress:  {},
		models.TaskStatusUnderReview: {},
		models.TaskStatusCancelled:   {},
	},
	models.TaskStatusInProgress: {
		models.TaskStatusSubmittedWork: {},
		models.TaskStatusUnderReview:   {},
		models.TaskStatusCancelled:     {},
	},
	models.TaskStatusSubmittedWork: {
		models.TaskStatusQAReview:  {},
		models.TaskStatusCancelled: {},
	},
	models.TaskStatusQAReview: {
		models.TaskStatusDelivered:         {},
		models.TaskStatusRevisionRequested: {},
		models.TaskStatusCancelled:         {},
	},
	models.TaskStatusRevisionRequested: {
		models.TaskStatusInProgress: {},
		models.TaskStatusCancelled:  {},
	},
	models.TaskStatusDelivered: {
		models.TaskStatusCompleted:      {},
		models.TaskStatusClientRevision: {},
		models.TaskStatusDisputed:       {},
	},
	models.TaskStatusClientRevision: {
		models.TaskStatusInProgress: {},
		models.TaskStatusDisputed:   {},
		models.TaskStatusCancelled:  {},
	},
	models.TaskStatusDisputed: {
		models.TaskStatusQAReview:  {},
		models.TaskStatusCancelled: {},
	},
	models.TaskStatusCompleted: {},
	models.TaskStatusCancelled: {},
}

var milestones = map[models.TaskStatus]models.Milestone{
	models.TaskStatusAssigned:      models.MilestoneAssigned,
	models.TaskStatusInProgress:    models.MilestoneStarted,
	models.TaskStatusSubmittedWork: models.MilestoneSubmittedWork,
	models.TaskStatusDelivered:     models.MilestoneDelivered,
	models.TaskStatusCompleted:     models.MilestoneCompleted,
	models.TaskStatusCancelled:     models.MilestoneCancelled,
}

// States returns every task status in declaration order
func States() []models.TaskStatus {
	return []models.TaskStatus{
		models.TaskStatusSubmitted,
		models.TaskStatusUnderReview,
		models.TaskStatusAssigned,
		models.TaskStatusInProgress,
		models.TaskStatusSubmittedWork,
		models.TaskStatusQAReview,
		models.TaskStatusRevisionRequested,
		models.TaskStatusDelivered,
		models.TaskStatusClientRevision,
		models.TaskStatusDisputed,
		models.TaskStatusCompleted,
		models.TaskStatusCancelled,
	}
}

// ValidStatus reports whether s is a known task status
func ValidStatus(s models.TaskStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the table allows current -> requested
func CanTransition(current, requested models.TaskStatus) bool {
	_, ok := allowedTransitions[current][requested]
	return ok
}

// Successors returns the legal next states of s, sorted
func Successors(s models.TaskStatus) []models.TaskStatus {
	next := make([]models.TaskStatus, 0, len(allowedTransitions[s]))
	for to := range allowedTransitions[s] {
		next = append(next, to)
	}
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	return next
}

// IsTerminal reports whether s has no outgoing transitions
func IsTerminal(s models.TaskStatus) bool {
	return ValidStatus(s) && len(allowedTransitions[s]) == 0
}

// MilestoneFor returns the milestone recorded on entering s, if any
func MilestoneFor(s models.TaskStatus) (models.Milestone, bool) {
	m, ok := milestones[s]
	return m, ok
}

// StateMachine applies transitions to task values
type StateMachine struct {
	Now func() time.Time
}

// NewStateMachine creates a state machine using the wall clock
func NewStateMachine() *StateMachine {
	return &StateMachine{Now: func() time.Time { return time.Now().UTC() }}
}

// Transition returns a copy of task moved to requested. The input task is
// never modified. Milestones already recorded are kept as is.
func (sm *StateMachine) Transition(task *models.Task, requested models.TaskStatus) (*models.Task, error) {
	if !CanTransition(task.Status, requested) {
		return nil, &models.InvalidStateTransitionError{Current: task.Status, Requested: requested}
	}

	next := task.Clone()
	next.Status = requested
	if m, ok := milestones[requested]; ok {
		if _, set := next.WorkflowTimestamps[m]; !set {
			next.WorkflowTimestamps[m] = sm.Now()
		}
	}
	return next, nil
}
