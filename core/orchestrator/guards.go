package orchestrator

import "freelance-workflow/core/models"

func forbidden(actor models.Actor, action string) error {
	return &models.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: action}
}

func adminOnly(action string) guard {
	return func(actor models.Actor, _ *models.Task) error {
		if actor.Role != models.RoleAdmin {
			return forbidden(actor, action)
		}
		return nil
	}
}

// owningClient allows only the client who posted the task
func owningClient(action string) guard {
	return func(actor models.Actor, task *models.Task) error {
		if actor.Role != models.RoleClient || task.ClientID != actor.ID {
			return forbidden(actor, action)
		}
		return nil
	}
}

// assignedFreelancer allows only the freelancer currently holding the task
func assignedFreelancer(action string) guard {
	return func(actor models.Actor, task *models.Task) error {
		if actor.Role != models.RoleFreelancer || !task.AssignedTo(actor.ID) {
			return forbidden(actor, action)
		}
		return nil
	}
}

func anyFreelancer(action string) guard {
	return func(actor models.Actor, _ *models.Task) error {
		if actor.Role != models.RoleFreelancer {
			return forbidden(actor, action)
		}
		return nil
	}
}

// party allows either side of the engagement
func party(action string) guard {
	return func(actor models.Actor, task *models.Task) error {
		if owningClient(action)(actor, task) == nil || assignedFreelancer(action)(actor, task) == nil {
			return nil
		}
		return forbidden(actor, action)
	}
}

func canView(actor models.Actor, task *models.Task) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleClient:
		if task.ClientID == actor.ID {
			return nil
		}
	case models.RoleFreelancer:
		if task.AssignedTo(actor.ID) || task.Status == models.TaskStatusUnderReview {
			return nil
		}
	}
	return forbidden(actor, "view task")
}
