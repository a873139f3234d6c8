package orchestrator

import (
	"fmt"
	"time"

	"freelance-workflow/core/models"
)

const (
	eventTaskUpdated   = "task:updated"
	eventTaskAvailable = "task:available"
)

func notice(recipient, kind, title, message string, task *models.Task) models.Notification {
	return models.Notification{
		RecipientID:   recipient,
		Type:          kind,
		Title:         title,
		Message:       message,
		RelatedTaskID: task.ID,
		Priority:      task.Priority,
	}
}

func notifyClient(kind, title, message string) func(*models.Task) []models.Notification {
	return func(task *models.Task) []models.Notification {
		return []models.Notification{notice(task.ClientID, kind, title, message, task)}
	}
}

func notifyFreelancer(kind, title, message string) func(*models.Task) []models.Notification {
	return func(task *models.Task) []models.Notification {
		if task.FreelancerID == nil {
			return nil
		}
		return []models.Notification{notice(*task.FreelancerID, kind, title, message, task)}
	}
}

// participants lists everyone attached to the task before or after a change
func participants(before, after *models.Task) []string {
	seen := make(map[string]bool)
	var users []string
	add := func(id *string) {
		if id == nil || *id == "" || seen[*id] {
			return
		}
		seen[*id] = true
		users = append(users, *id)
	}
	add(&after.ClientID)
	add(before.FreelancerID)
	add(after.FreelancerID)
	return users
}

func buildEffects(action string, actor models.Actor, before, after *models.Task, notify []models.Notification) models.Effects {
	payload := map[string]interface{}{
		"task_id": after.ID,
		"status":  string(after.Status),
		"version": after.Version,
	}
	if before != after {
		payload["previous_status"] = string(before.Status)
	}

	realtime := []models.RealtimeEvent{{
		TargetUsers: participants(before, after),
		EventName:   eventTaskUpdated,
		Payload:     payload,
	}}
	if after.Status == models.TaskStatusUnderReview && before.Status != models.TaskStatusUnderReview {
		realtime = append(realtime, models.RealtimeEvent{
			TargetRole: models.RoleFreelancer,
			EventName:  eventTaskAvailable,
			Payload: map[string]interface{}{
				"task_id":  after.ID,
				"category": after.Category,
				"priority": string(after.Priority),
			},
		})
	}

	changes := map[string]interface{}{
		"status": map[string]string{"from": string(before.Status), "to": string(after.Status)},
	}
	if !sameHolder(before, after) {
		changes["freelancer_id"] = map[string]interface{}{"from": before.FreelancerID, "to": after.FreelancerID}
	}
	if before.RevisionsUsed != after.RevisionsUsed {
		changes["revisions_used"] = map[string]int{"from": before.RevisionsUsed, "to": after.RevisionsUsed}
	}
	if !before.Deadline.Equal(after.Deadline) {
		changes["deadline"] = map[string]string{"from": before.Deadline.Format(time.RFC3339), "to": after.Deadline.Format(time.RFC3339)}
	}

	return models.Effects{
		Notifications: notify,
		Realtime:      realtime,
		Audit: []models.AuditEntry{{
			ActorID:         actor.ID,
			Action:          action,
			Resource:        "task",
			ResourceID:      after.ID,
			Changes:         changes,
			RequestMetadata: map[string]string{"role": string(actor.Role)},
		}},
	}
}

func sameHolder(a, b *models.Task) bool {
	if a.FreelancerID == nil || b.FreelancerID == nil {
		return a.FreelancerID == nil && b.FreelancerID == nil
	}
	return *a.FreelancerID == *b.FreelancerID
}

func budgetMessage(p *models.Payment) string {
	return fmt.Sprintf("%s held in escrow for you (platform fee %s)", p.FreelancerPayout.StringFixed(2), p.PlatformFee.StringFixed(2))
}
