package models

import "time"

// TaskEvent represents a state transition event for a task
type TaskEvent struct {
	ID         int64
	TaskID     string
	At         time.Time
	FromStatus *TaskStatus
	ToStatus   TaskStatus
	ActorID    string
	Reason     string
	Meta       map[string]interface{} // Additional metadata
}

// Role is the platform role an actor performs an action as
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

// Actor identifies who is performing an action
type Actor struct {
	ID   string
	Role Role
}

// Notification is a message for a single user about a task
type Notification struct {
	RecipientID   string
	Type          string
	Title         string
	Message       string
	RelatedTaskID string
	Priority      Priority
}

// RealtimeEvent is pushed to connected users or to everyone with a role
type RealtimeEvent struct {
	TargetUsers []string
	TargetRole  Role
	EventName   string
	Payload     map[string]interface{}
}

// AuditEntry records who changed what
type AuditEntry struct {
	ActorID         string
	Action          string
	Resource        string
	ResourceID      string
	Changes         map[string]interface{}
	RequestMetadata map[string]string
}

// Effects groups the side effects requested by one committed action
type Effects struct {
	Notifications []Notification
	Realtime      []RealtimeEvent
	Audit         []AuditEntry
}

// EffectKind names the collaborator a side effect was sent to
type EffectKind string

const (
	EffectNotification EffectKind = "notification"
	EffectRealtime     EffectKind = "realtime"
	EffectAudit        EffectKind = "audit"
)

// EffectOutcome reports the result of one best-effort side effect
type EffectOutcome struct {
	Kind   EffectKind
	Target string
	Err    error
}

// Failed reports whether the effect could not be delivered
func (o EffectOutcome) Failed() bool {
	return o.Err != nil
}
