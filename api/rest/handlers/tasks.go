package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/orchestrator"
	"freelance-workflow/core/spec"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TaskHandler handles task workflow HTTP requests
type TaskHandler struct {
	orch *orchestrator.Orchestrator
	log  *logrus.Entry
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(orch *orchestrator.Orchestrator, log *logrus.Entry) *TaskHandler {
	return &TaskHandler{orch: orch, log: log}
}

// CreateTaskRequest represents the request to post a task. Either the
// fields or SpecYAML are given.
type CreateTaskRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Budget        decimal.Decimal `json:"budget"`
	Deadline      time.Time       `json:"deadline"`
	Priority      models.Priority `json:"priority"`
	RevisionLimit *int            `json:"revision_limit"`
	SpecYAML      string          `json:"spec_yaml"`
}

// ActionRequest carries the optional inputs of workflow actions
type ActionRequest struct {
	Approve      *bool  `json:"approve"`
	Passed       *bool  `json:"passed"`
	FreelancerID string `json:"freelancer_id"`
	Reason       string `json:"reason"`
	Note         string `json:"note"`
	Notes        string `json:"notes"`
	Outcome      string `json:"outcome"`
	Limit        int    `json:"limit"`
}

// CreateTask handles POST /v1/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.CreateTask"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, log, &models.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	in := orchestrator.NewTask{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Budget:        req.Budget,
		Deadline:      req.Deadline,
		Priority:      req.Priority,
		RevisionLimit: req.RevisionLimit,
	}
	if req.SpecYAML != "" {
		if in, err = spec.ParseTaskSpec(req.SpecYAML); err != nil {
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				err = &models.ValidationError{Field: "spec_yaml", Message: err.Error()}
			}
			writeError(w, log, err)
			return
		}
	}

	res, err := h.orch.CreateTask(r.Context(), actor, in)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, actionResponse(res))
}

// GetTask handles GET /v1/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.GetTask"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	task, err := h.orch.GetTask(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(task))
}

// ListTasks handles GET /v1/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.ListTasks"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}

	filter := models.TaskFilter{Limit: 50}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := models.TaskStatus(s)
		filter.Status = &status
	}
	filter.ClientID = q.Get("client_id")
	filter.FreelancerID = q.Get("freelancer_id")
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			writeError(w, log, &models.ValidationError{Field: "limit", Value: l, Message: "must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	tasks, err := h.orch.ListTasks(r.Context(), actor, filter)
	if err != nil {
		writeError(w, log, err)
		return
	}
	items := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = taskResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// GetTaskEvents handles GET /v1/tasks/{id}/events
func (h *TaskHandler) GetTaskEvents(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.GetTaskEvents"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	events, err := h.orch.TaskHistory(r.Context(), actor, mux.Vars(r)["id"], 100)
	if err != nil {
		writeError(w, log, err)
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, event := range events {
		item := map[string]interface{}{
			"at":        event.At,
			"to_status": event.ToStatus,
			"actor_id":  event.ActorID,
			"reason":    event.Reason,
		}
		if event.FromStatus != nil {
			item["from_status"] = *event.FromStatus
		}
		if len(event.Meta) > 0 {
			item["meta"] = event.Meta
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// GetTaskPayment handles GET /v1/tasks/{id}/payment
func (h *TaskHandler) GetTaskPayment(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.GetTaskPayment"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	payment, err := h.orch.TaskPayment(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse(payment))
}

type actionFunc func(ctx context.Context, actor models.Actor, taskID string, req ActionRequest) (*orchestrator.Result, error)

// action adapts a workflow action to an HTTP handler
func (h *TaskHandler) action(op string, run actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.WithField("operation", "handlers.TaskHandler."+op)

		actor, err := actorFrom(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		req, err := decodeAction(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		res, err := run(r.Context(), actor, mux.Vars(r)["id"], req)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, actionResponse(res))
	}
}

func decodeAction(r *http.Request) (ActionRequest, error) {
	var req ActionRequest
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, &models.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return req, nil
}

func required(flag *bool, field string) (bool, error) {
	if flag == nil {
		return false, &models.ValidationError{Field: field, Message: "is required"}
	}
	return *flag, nil
}

// ReviewTask handles POST /v1/tasks/{id}/review
func (h *TaskHandler) ReviewTask() http.HandlerFunc {
	return h.action("ReviewTask", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		approve, err := required(req.Approve, "approve")
		if err != nil {
			return nil, err
		}
		return h.orch.ReviewTask(ctx, actor, id, approve, req.Note)
	})
}

// AssignTask handles POST /v1/tasks/{id}/assign
func (h *TaskHandler) AssignTask() http.HandlerFunc {
	return h.action("AssignTask", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		if req.FreelancerID == "" {
			return nil, &models.ValidationError{Field: "freelancer_id", Message: "is required"}
		}
		return h.orch.AssignTask(ctx, actor, id, req.FreelancerID)
	})
}

// AcceptTask handles POST /v1/tasks/{id}/accept
func (h *TaskHandler) AcceptTask() http.HandlerFunc {
	return h.action("AcceptTask", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.AcceptTask(ctx, actor, id)
	})
}

// AutoAssignTask handles POST /v1/tasks/{id}/auto-assign
func (h *TaskHandler) AutoAssignTask() http.HandlerFunc {
	return h.action("AutoAssignTask", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.AutoAssignTask(ctx, actor, id)
	})
}

// ReassignTask handles POST /v1/tasks/{id}/reassign
func (h *TaskHandler) ReassignTask() http.HandlerFunc {
	return h.action("ReassignTask", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		if req.FreelancerID == "" {
			return nil, &models.ValidationError{Field: "freelancer_id", Message: "is required"}
		}
		return h.orch.ReassignTask(ctx, actor, id, req.FreelancerID, req.Reason)
	})
}

// StartTask handles POST /v1/tasks/{id}/start
func (h *TaskHandler) StartTask() http.HandlerFunc {
	return h.action("StartTask", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.StartTask(ctx, actor, id)
	})
}

// SubmitWork handles POST /v1/tasks/{id}/submit
func (h *TaskHandler) SubmitWork() http.HandlerFunc {
	return h.action("SubmitWork", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		return h.orch.SubmitWork(ctx, actor, id, req.Notes)
	})
}

// BeginQA handles POST /v1/tasks/{id}/qa/start
func (h *TaskHandler) BeginQA() http.HandlerFunc {
	return h.action("BeginQA", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.BeginQA(ctx, actor, id)
	})
}

// CompleteQA handles POST /v1/tasks/{id}/qa/complete
func (h *TaskHandler) CompleteQA() http.HandlerFunc {
	return h.action("CompleteQA", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		passed, err := required(req.Passed, "passed")
		if err != nil {
			return nil, err
		}
		return h.orch.CompleteQA(ctx, actor, id, passed, req.Note)
	})
}

// ResumeWork handles POST /v1/tasks/{id}/resume
func (h *TaskHandler) ResumeWork() http.HandlerFunc {
	return h.action("ResumeWork", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.ResumeWork(ctx, actor, id)
	})
}

// RequestRevision handles POST /v1/tasks/{id}/revisions
func (h *TaskHandler) RequestRevision() http.HandlerFunc {
	return h.action("RequestRevision", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		return h.orch.RequestRevision(ctx, actor, id, req.Reason)
	})
}

// ApproveTask handles POST /v1/tasks/{id}/approve
func (h *TaskHandler) ApproveTask() http.HandlerFunc {
	return h.action("ApproveTask", func(ctx context.Context, actor models.Actor, id string, _ ActionRequest) (*orchestrator.Result, error) {
		return h.orch.ApproveTask(ctx, actor, id)
	})
}

// OpenDispute handles POST /v1/tasks/{id}/disputes
func (h *TaskHandler) OpenDispute() http.HandlerFunc {
	return h.action("OpenDispute", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		return h.orch.OpenDispute(ctx, actor, id, req.Reason)
	})
}

// ResolveDispute handles POST /v1/tasks/{id}/disputes/resolve
func (h *TaskHandler) ResolveDispute() http.HandlerFunc {
	return h.action("ResolveDispute", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		return h.orch.ResolveDispute(ctx, actor, id, orchestrator.DisputeOutcome(req.Outcome), req.Note)
	})
}

// CancelTask handles POST /v1/tasks/{id}/cancel
func (h *TaskHandler) CancelTask() http.HandlerFunc {
	return h.action("CancelTask", func(ctx context.Context, actor models.Actor, id string, req ActionRequest) (*orchestrator.Result, error) {
		return h.orch.CancelTask(ctx, actor, id, req.Reason)
	})
}

// AutoAssignPending handles POST /v1/tasks/auto-assign
func (h *TaskHandler) AutoAssignPending(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TaskHandler.AutoAssignPending"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	req, err := decodeAction(r)
	if err != nil {
		writeError(w, log, err)
		return
	}

	outcomes, err := h.orch.AutoAssignPending(r.Context(), actor, req.Limit)
	if err != nil {
		writeError(w, log, err)
		return
	}

	items := make([]map[string]interface{}, len(outcomes))
	assigned := 0
	for i, o := range outcomes {
		item := map[string]interface{}{"task_id": o.TaskID}
		if o.Err != nil {
			_, code, _ := classify(o.Err)
			item["error"] = code
			item["message"] = o.Err.Error()
		} else {
			assigned++
			item["freelancer_id"] = o.Result.Task.FreelancerID
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempted": len(outcomes),
		"assigned":  assigned,
		"items":     items,
	})
}
