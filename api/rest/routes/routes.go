package routes

import (
	"net/http"

	"freelance-workflow/api/rest/handlers"
	"freelance-workflow/core/monitoring"
	"freelance-workflow/core/orchestrator"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, orch *orchestrator.Orchestrator, store handlers.FreelancerStore, monitor *monitoring.TaskMonitor, gatherer prometheus.Gatherer, log *logrus.Entry) {
	taskHandler := handlers.NewTaskHandler(orch, log)
	freelancerHandler := handlers.NewFreelancerHandler(store, log)
	monitorHandler := handlers.NewMonitorHandler(monitor, log)

	api := r.PathPrefix("/v1").Subrouter()

	// Task endpoints
	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods("POST")
	api.HandleFunc("/tasks", taskHandler.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/auto-assign", taskHandler.AutoAssignPending).Methods("POST")
	api.HandleFunc("/tasks/{id}", taskHandler.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}/events", taskHandler.GetTaskEvents).Methods("GET")
	api.HandleFunc("/tasks/{id}/payment", taskHandler.GetTaskPayment).Methods("GET")
	api.HandleFunc("/tasks/{id}/candidates", freelancerHandler.RankCandidates).Methods("GET")

	// Workflow actions
	api.HandleFunc("/tasks/{id}/review", taskHandler.ReviewTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/assign", taskHandler.AssignTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/accept", taskHandler.AcceptTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/auto-assign", taskHandler.AutoAssignTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/reassign", taskHandler.ReassignTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/start", taskHandler.StartTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/submit", taskHandler.SubmitWork()).Methods("POST")
	api.HandleFunc("/tasks/{id}/qa/start", taskHandler.BeginQA()).Methods("POST")
	api.HandleFunc("/tasks/{id}/qa/complete", taskHandler.CompleteQA()).Methods("POST")
	api.HandleFunc("/tasks/{id}/resume", taskHandler.ResumeWork()).Methods("POST")
	api.HandleFunc("/tasks/{id}/revisions", taskHandler.RequestRevision()).Methods("POST")
	api.HandleFunc("/tasks/{id}/approve", taskHandler.ApproveTask()).Methods("POST")
	api.HandleFunc("/tasks/{id}/disputes", taskHandler.OpenDispute()).Methods("POST")
	api.HandleFunc("/tasks/{id}/disputes/resolve", taskHandler.ResolveDispute()).Methods("POST")
	api.HandleFunc("/tasks/{id}/cancel", taskHandler.CancelTask()).Methods("POST")

	// Freelancer endpoints
	api.HandleFunc("/freelancers", freelancerHandler.CreateFreelancer).Methods("POST")
	api.HandleFunc("/freelancers", freelancerHandler.ListFreelancers).Methods("GET")
	api.HandleFunc("/freelancers/{id}", freelancerHandler.GetFreelancer).Methods("GET")

	// Monitoring endpoints
	api.HandleFunc("/monitor/tasks", monitorHandler.GetOverview).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
}
