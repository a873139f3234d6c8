package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"freelance-workflow/core/matcher"
	"freelance-workflow/core/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// FreelancerStore is the slice of the store the freelancer endpoints need
type FreelancerStore interface {
	CreateFreelancer(ctx context.Context, f *models.Freelancer) error
	GetFreelancer(ctx context.Context, id string) (*models.Freelancer, error)
	ListFreelancers(ctx context.Context, filter models.FreelancerFilter) ([]*models.Freelancer, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// FreelancerHandler serves freelancer profiles and workload for the admin dashboard
type FreelancerHandler struct {
	store FreelancerStore
	log   *logrus.Entry
}

// NewFreelancerHandler creates a new freelancer handler
func NewFreelancerHandler(store FreelancerStore, log *logrus.Entry) *FreelancerHandler {
	return &FreelancerHandler{store: store, log: log}
}

// CreateFreelancerRequest registers a freelancer profile
type CreateFreelancerRequest struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Skills               []string `json:"skills"`
	PerformanceScore     float64  `json:"performance_score"`
	OnTimeCompletionRate *float64 `json:"on_time_completion_rate"`
	MaxActiveTasks       int      `json:"max_active_tasks"`
}

// FreelancerResponse is the JSON view of a freelancer and its workload
type FreelancerResponse struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	Status               models.FreelancerStatus `json:"status"`
	Skills               []string                `json:"skills"`
	PerformanceScore     float64                 `json:"performance_score"`
	OnTimeCompletionRate *float64                `json:"on_time_completion_rate,omitempty"`
	CurrentActiveTasks   int                     `json:"current_active_tasks"`
	MaxActiveTasks       int                     `json:"max_active_tasks"`
	Utilization          float64                 `json:"utilization"`
	CreatedAt            time.Time               `json:"created_at"`
}

func freelancerResponse(f *models.Freelancer) FreelancerResponse {
	utilization := 0.0
	if f.MaxActiveTasks > 0 {
		utilization = float64(f.CurrentActiveTasks) / float64(f.MaxActiveTasks)
	}
	return FreelancerResponse{
		ID:                   f.ID,
		Name:                 f.Name,
		Status:               f.Status,
		Skills:               f.Skills,
		PerformanceScore:     f.PerformanceScore,
		OnTimeCompletionRate: f.OnTimeCompletionRate,
		CurrentActiveTasks:   f.CurrentActiveTasks,
		MaxActiveTasks:       f.MaxActiveTasks,
		Utilization:          utilization,
		CreatedAt:            f.CreatedAt,
	}
}

func (h *FreelancerHandler) requireAdmin(r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return &models.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "manage freelancers"}
	}
	return nil
}

// CreateFreelancer handles POST /v1/freelancers
func (h *FreelancerHandler) CreateFreelancer(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.FreelancerHandler.CreateFreelancer"
	log := h.log.WithField("operation", op)

	if err := h.requireAdmin(r); err != nil {
		writeError(w, log, err)
		return
	}

	var req CreateFreelancerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, log, &models.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if req.MaxActiveTasks <= 0 {
		writeError(w, log, &models.ValidationError{Field: "max_active_tasks", Value: req.MaxActiveTasks, Message: "must be positive"})
		return
	}
	if req.PerformanceScore < 0 || req.PerformanceScore > 100 {
		writeError(w, log, &models.ValidationError{Field: "performance_score", Value: req.PerformanceScore, Message: "must be within [0,100]"})
		return
	}
	if rate := req.OnTimeCompletionRate; rate != nil && (*rate < 0 || *rate > 100) {
		writeError(w, log, &models.ValidationError{Field: "on_time_completion_rate", Value: *rate, Message: "must be within [0,100]"})
		return
	}

	skills := make([]string, 0, len(req.Skills))
	for _, s := range req.Skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			skills = append(skills, s)
		}
	}

	f := &models.Freelancer{
		ID:                   req.ID,
		Name:                 req.Name,
		Status:               models.FreelancerStatusActive,
		Skills:               skills,
		PerformanceScore:     req.PerformanceScore,
		OnTimeCompletionRate: req.OnTimeCompletionRate,
		MaxActiveTasks:       req.MaxActiveTasks,
	}
	if err := h.store.CreateFreelancer(r.Context(), f); err != nil {
		writeError(w, log, err)
		return
	}
	log.WithField("freelancer_id", f.ID).Info("freelancer registered")
	writeJSON(w, http.StatusCreated, freelancerResponse(f))
}

// GetFreelancer handles GET /v1/freelancers/{id}
func (h *FreelancerHandler) GetFreelancer(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.FreelancerHandler.GetFreelancer"
	log := h.log.WithField("operation", op)

	if err := h.requireAdmin(r); err != nil {
		writeError(w, log, err)
		return
	}
	f, err := h.store.GetFreelancer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, freelancerResponse(f))
}

// ListFreelancers handles GET /v1/freelancers
func (h *FreelancerHandler) ListFreelancers(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.FreelancerHandler.ListFreelancers"
	log := h.log.WithField("operation", op)

	if err := h.requireAdmin(r); err != nil {
		writeError(w, log, err)
		return
	}

	q := r.URL.Query()
	filter := models.FreelancerFilter{
		Skill:        strings.ToLower(q.Get("skill")),
		WithCapacity: q.Get("available") == "true",
	}
	if s := q.Get("status"); s != "" {
		status := models.FreelancerStatus(s)
		filter.Status = &status
	}

	freelancers, err := h.store.ListFreelancers(r.Context(), filter)
	if err != nil {
		writeError(w, log, err)
		return
	}

	items := make([]FreelancerResponse, len(freelancers))
	totalActive, totalCapacity := 0, 0
	for i, f := range freelancers {
		items[i] = freelancerResponse(f)
		totalActive += f.CurrentActiveTasks
		totalCapacity += f.MaxActiveTasks
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"workload": map[string]int{
			"active_tasks": totalActive,
			"capacity":     totalCapacity,
		},
	})
}

// CandidateResponse is one ranked freelancer for a task
type CandidateResponse struct {
	FreelancerID string            `json:"freelancer_id"`
	Score        int               `json:"score"`
	Breakdown    matcher.Breakdown `json:"breakdown"`
}

// RankCandidates handles GET /v1/tasks/{id}/candidates, previewing what
// auto-assignment would pick
func (h *FreelancerHandler) RankCandidates(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.FreelancerHandler.RankCandidates"
	log := h.log.WithField("operation", op)

	if err := h.requireAdmin(r); err != nil {
		writeError(w, log, err)
		return
	}
	task, err := h.store.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, log, err)
		return
	}

	ranked, err := matcher.NewMatcher(h.store).Candidates(r.Context(), task)
	if err != nil {
		writeError(w, log, err)
		return
	}
	items := make([]CandidateResponse, len(ranked))
	for i, c := range ranked {
		items[i] = CandidateResponse{FreelancerID: c.Freelancer.ID, Score: c.Score, Breakdown: c.Breakdown}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
