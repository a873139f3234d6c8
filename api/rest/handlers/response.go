package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/orchestrator"
	"freelance-workflow/core/revision"

	"github.com/sirupsen/logrus"
)

// Actor headers are set by the authenticating gateway in front of the API
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func actorFrom(r *http.Request) (models.Actor, error) {
	actor := models.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role: models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
	if actor.ID == "" {
		return actor, &models.ValidationError{Field: HeaderActorID, Message: "header is required"}
	}
	switch actor.Role {
	case models.RoleClient, models.RoleFreelancer, models.RoleAdmin:
		return actor, nil
	}
	return actor, &models.ValidationError{Field: HeaderActorRole, Value: string(actor.Role), Message: "must be client, freelancer or admin"}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the workflow error taxonomy onto HTTP status codes
func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status, code, details := classify(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeJSON(w, status, ErrorResponse{Error: code, Message: "internal error"})
		return
	}
	log.WithError(err).WithField("status", status).Debug("request rejected")
	writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error(), Details: details})
}

func classify(err error) (int, string, map[string]interface{}) {
	var (
		ve   *models.ValidationError
		fe   *models.ForbiddenError
		iste *models.InvalidStateTransitionError
		ace  *models.AssignmentConflictError
		cme  *models.ConcurrentModificationError
		wle  *models.WorkloadExceededError
		nec  *models.NoEligibleCandidateError
		rle  *models.RevisionLimitExceededError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_error", map[string]interface{}{"field": ve.Field, "value": ve.Value}
	case errors.As(err, &fe):
		return http.StatusForbidden, "forbidden", map[string]interface{}{"action": fe.Action, "role": fe.Role}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.As(err, &iste):
		return http.StatusConflict, "invalid_state_transition", map[string]interface{}{"current": iste.Current, "requested": iste.Requested}
	case errors.As(err, &ace):
		return http.StatusConflict, "assignment_conflict", map[string]interface{}{"expected_status": ace.ExpectedStatus}
	case errors.As(err, &cme):
		return http.StatusConflict, "concurrent_modification", map[string]interface{}{"expected_version": cme.ExpectedVersion}
	case errors.As(err, &wle):
		return http.StatusConflict, "workload_exceeded", map[string]interface{}{"freelancer_id": wle.FreelancerID, "current": wle.Current, "max": wle.Max}
	case errors.Is(err, models.ErrPaymentExists):
		return http.StatusConflict, "payment_exists", nil
	case errors.As(err, &nec):
		return http.StatusUnprocessableEntity, "no_eligible_candidate", map[string]interface{}{"category": nec.Category}
	case errors.As(err, &rle):
		return http.StatusUnprocessableEntity, "revision_limit_exceeded", map[string]interface{}{"used": rle.Used, "limit": rle.Limit}
	}
	return http.StatusInternalServerError, "internal_error", nil
}

// TaskResponse is the JSON view of a task
type TaskResponse struct {
	ID                string               `json:"id"`
	ClientID          string               `json:"client_id"`
	FreelancerID      *string              `json:"freelancer_id,omitempty"`
	Title             string               `json:"title"`
	Description       string               `json:"description,omitempty"`
	Category          string               `json:"category"`
	Status            models.TaskStatus    `json:"status"`
	Budget            string               `json:"budget"`
	Deadline          time.Time            `json:"deadline"`
	Priority          models.Priority      `json:"priority"`
	RevisionLimit     int                  `json:"revision_limit"`
	RevisionsUsed     int                  `json:"revisions_used"`
	RevisionsLeft     int                  `json:"revisions_left"`
	ReassignmentCount int                  `json:"reassignment_count"`
	Timestamps        map[string]time.Time `json:"timestamps"`
	Version           int64                `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// PaymentResponse is the JSON view of an escrow payment
type PaymentResponse struct {
	ID                    string              `json:"id"`
	TaskID                string              `json:"task_id"`
	FreelancerID          string              `json:"freelancer_id"`
	TaskBudget            string              `json:"task_budget"`
	PlatformCommissionPct string              `json:"platform_commission_pct"`
	PlatformFee           string              `json:"platform_fee"`
	FreelancerPayout      string              `json:"freelancer_payout"`
	EscrowStatus          models.EscrowStatus `json:"escrow_status"`
	CreatedAt             time.Time           `json:"created_at"`
}

// EffectResponse reports one side effect of an action
type EffectResponse struct {
	Kind      models.EffectKind `json:"kind"`
	Target    string            `json:"target"`
	Delivered bool              `json:"delivered"`
	Error     string            `json:"error,omitempty"`
}

// ActionResponse is returned by every workflow action
type ActionResponse struct {
	Task    TaskResponse     `json:"task"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Effects []EffectResponse `json:"effects"`
}

func taskResponse(t *models.Task) TaskResponse {
	timestamps := make(map[string]time.Time, len(t.WorkflowTimestamps))
	for k, v := range t.WorkflowTimestamps {
		timestamps[string(k)] = v
	}
	return TaskResponse{
		ID:                t.ID,
		ClientID:          t.ClientID,
		FreelancerID:      t.FreelancerID,
		Title:             t.Title,
		Description:       t.Description,
		Category:          t.Category,
		Status:            t.Status,
		Budget:            t.Budget.StringFixed(2),
		Deadline:          t.Deadline,
		Priority:          t.Priority,
		RevisionLimit:     t.RevisionLimit,
		RevisionsUsed:     t.RevisionsUsed,
		RevisionsLeft:     revision.Remaining(t),
		ReassignmentCount: t.ReassignmentCount,
		Timestamps:        timestamps,
		Version:           t.Version,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func paymentResponse(p *models.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:                    p.ID,
		TaskID:                p.TaskID,
		FreelancerID:          p.FreelancerID,
		TaskBudget:            p.TaskBudget.StringFixed(2),
		PlatformCommissionPct: p.PlatformCommissionPct.String(),
		PlatformFee:           p.PlatformFee.StringFixed(2),
		FreelancerPayout:      p.FreelancerPayout.StringFixed(2),
		EscrowStatus:          p.EscrowStatus,
		CreatedAt:             p.CreatedAt,
	}
}

func actionResponse(res *orchestrator.Result) ActionResponse {
	effects := make([]EffectResponse, 0, len(res.Effects))
	for _, o := range res.Effects {
		e := EffectResponse{Kind: o.Kind, Target: o.Target, Delivered: !o.Failed()}
		if o.Failed() {
			e.Error = o.Err.Error()
		}
		effects = append(effects, e)
	}
	return ActionResponse{
		Task:    taskResponse(res.Task),
		Payment: paymentResponse(res.Payment),
		Effects: effects,
	}
}
