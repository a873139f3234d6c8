package handlers

import (
	"net/http"
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/monitoring"

	"github.com/sirupsen/logrus"
)

// MonitorHandler serves the deadline and escrow overview for admins
type MonitorHandler struct {
	monitor *monitoring.TaskMonitor
	log     *logrus.Entry
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitor *monitoring.TaskMonitor, log *logrus.Entry) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, log: log}
}

type taskHealthResponse struct {
	TaskID           string            `json:"task_id"`
	Status           models.TaskStatus `json:"status"`
	FreelancerID     *string           `json:"freelancer_id,omitempty"`
	Deadline         time.Time         `json:"deadline"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	Budget           string            `json:"budget"`
}

func healthList(list []monitoring.TaskHealth) []taskHealthResponse {
	out := make([]taskHealthResponse, len(list))
	for i, h := range list {
		out[i] = taskHealthResponse{
			TaskID:           h.TaskID,
			Status:           h.Status,
			FreelancerID:     h.FreelancerID,
			Deadline:         h.Deadline,
			RemainingSeconds: int64(h.Remaining / time.Second),
			Budget:           h.Budget.StringFixed(2),
		}
	}
	return out
}

// GetOverview handles GET /v1/monitor/tasks
func (h *MonitorHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.MonitorHandler.GetOverview"
	log := h.log.WithField("operation", op)

	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, log, &models.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "view task monitor"})
		return
	}

	report, err := h.monitor.Scan(r.Context())
	if err != nil {
		writeError(w, log, err)
		return
	}

	open := make(map[string]int, len(report.Open))
	for status, n := range report.Open {
		open[string(status)] = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at":    report.GeneratedAt,
		"open":            open,
		"overdue":         healthList(report.Overdue),
		"at_risk":         healthList(report.AtRisk),
		"escrow_exposure": report.EscrowExposure.StringFixed(2),
	})
}
