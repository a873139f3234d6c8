package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"freelance-workflow/core/models"
)

// NotificationRepository stores user notifications
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Notify inserts a notification for its recipient
func (r *NotificationRepository) Notify(ctx context.Context, n models.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, type, title, message, related_task_id, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	priority := n.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	_, err := r.db.ExecContext(ctx, query,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Message,
		sql.NullString{String: n.RelatedTaskID, Valid: n.RelatedTaskID != ""},
		string(priority),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// AuditRepository stores audit entries
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts an audit entry
func (r *AuditRepository) Record(ctx context.Context, e models.AuditEntry) error {
	changes, err := json.Marshal(nonNilMap(e.Changes))
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	metadata := []byte("{}")
	if e.RequestMetadata != nil {
		if metadata, err = json.Marshal(e.RequestMetadata); err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (actor_id, action, resource, resource_id, changes, request_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, e.ActorID, e.Action, e.Resource, e.ResourceID, changes, metadata); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ChannelPublisher publishes realtime events through Postgres NOTIFY.
// A gateway process LISTENs on the channel and fans events out to sockets.
type ChannelPublisher struct {
	db      *DB
	channel string
}

// NewChannelPublisher creates a publisher for channel
func NewChannelPublisher(db *DB, channel string) *ChannelPublisher {
	return &ChannelPublisher{db: db, channel: channel}
}

type realtimeMessage struct {
	TargetUsers []string               `json:"target_users,omitempty"`
	TargetRole  models.Role            `json:"target_role,omitempty"`
	Event       string                 `json:"event"`
	Payload     map[string]interface{} `json:"payload"`
}

// Publish sends e on the channel
func (p *ChannelPublisher) Publish(ctx context.Context, e models.RealtimeEvent) error {
	body, err := json.Marshal(realtimeMessage{
		TargetUsers: e.TargetUsers,
		TargetRole:  e.TargetRole,
		Event:       e.EventName,
		Payload:     nonNilMap(e.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(body)); err != nil {
		return fmt.Errorf("notify %s: %w", p.channel, err)
	}
	return nil
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
