package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"freelance-workflow/core/models"
)

// EventRepository handles database operations for task events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListTaskEvents retrieves events for a task, newest first
func (r *EventRepository) ListTaskEvents(ctx context.Context, taskID string, limit int) ([]models.TaskEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, task_id, at, from_status, to_status, actor_id, reason, meta_json
		FROM task_events
		WHERE task_id = $1
		ORDER BY at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TaskEvent
	for rows.Next() {
		var event models.TaskEvent
		var fromStatus sql.NullString
		var metaJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.TaskID,
			&event.At,
			&fromStatus,
			&event.ToStatus,
			&event.ActorID,
			&event.Reason,
			&metaJSON,
		)
		if err != nil {
			return nil, err
		}

		if fromStatus.Valid {
			status := models.TaskStatus(fromStatus.String)
			event.FromStatus = &status
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &event.Meta); err != nil {
				return nil, fmt.Errorf("decode event %d meta: %w", event.ID, err)
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

func insertTaskEvent(ctx context.Context, q querier, event models.TaskEvent) error {
	query := `
		INSERT INTO task_events (task_id, from_status, to_status, actor_id, reason, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var fromStatus sql.NullString
	if event.FromStatus != nil {
		fromStatus = sql.NullString{String: string(*event.FromStatus), Valid: true}
	}

	metaJSON := []byte("{}")
	if event.Meta != nil {
		encoded, err := json.Marshal(event.Meta)
		if err != nil {
			return fmt.Errorf("encode event meta: %w", err)
		}
		metaJSON = encoded
	}

	_, err := q.ExecContext(ctx, query, event.TaskID, fromStatus, event.ToStatus, event.ActorID, event.Reason, metaJSON)
	return err
}
