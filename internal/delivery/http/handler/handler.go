package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/user/scrapestudio/internal/delivery/http/request"
	"github.com/user/scrapestudio/internal/delivery/http/response"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"github.com/user/scrapestudio/internal/usecase"
	"go.uber.org/zap"
)

const recentRecordsLimit = 20

// Handler exposes the orchestration core over a thin HTTP surface: enough to
// submit, inspect and cancel jobs, trigger schedules, and test webhooks.
type Handler struct {
	jobs      repository.JobRepository
	projects  repository.ProjectRepository
	schedules repository.ScheduleRepository
	webhooks  repository.WebhookRepository
	queueRepo repository.QueueRepository
	queue     *usecase.JobQueue
	scheduler *usecase.SchedulerService
	delivery  *usecase.WebhookService
	log       *zap.Logger
}

func NewHandler(
	jobs repository.JobRepository,
	projects repository.ProjectRepository,
	schedules repository.ScheduleRepository,
	webhooks repository.WebhookRepository,
	queueRepo repository.QueueRepository,
	queue *usecase.JobQueue,
	scheduler *usecase.SchedulerService,
	delivery *usecase.WebhookService,
	log *zap.Logger,
) *Handler {
	return &Handler{
		jobs:      jobs,
		projects:  projects,
		schedules: schedules,
		webhooks:  webhooks,
		queueRepo: queueRepo,
		queue:     queue,
		scheduler: scheduler,
		delivery:  delivery,
		log:       log,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	queued, err := h.queueRepo.Size(r.Context())
	if err != nil {
		h.log.Warn("failed to read queue size", zap.Error(err))
	}
	h.writeJSON(w, http.StatusOK, response.HealthResponse{
		Status:     "ok",
		ActiveJobs: h.queue.ActiveCount(),
		QueuedJobs: queued,
	})
}

func (h *Handler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req request.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" || req.UserID == "" {
		h.writeJSONError(w, "project_id and user_id are required", http.StatusBadRequest)
		return
	}

	project, err := h.projects.GetProject(r.Context(), req.ProjectID, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			h.writeJSONError(w, "Project not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load project", err)
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.ProjectID, req.UserID, req.TargetIDs,
		req.Options, entity.TriggerAPI, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveTargets) {
			h.writeJSONError(w, "Project has no active targets", http.StatusBadRequest)
			return
		}
		h.serverError(w, "Failed to create job", err)
		return
	}

	if err := h.queue.Enqueue(r.Context(), job, project); err != nil {
		h.serverError(w, "Failed to enqueue job", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.CreateJobResponse{Status: "queued", Job: job})
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load job", err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// HandleCancelJob cancels a job. Actively executing jobs are signalled
// through the queue; jobs still waiting are cancelled directly in the store.
func (h *Handler) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if h.queue.CancelJob(jobID) {
		h.writeJSON(w, http.StatusAccepted, response.CancelJobResponse{
			Status:  "cancelling",
			Message: "Cancellation requested; the current target will finish first",
		})
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load job", err)
		return
	}

	if job.Status != entity.JobStatusQueued {
		h.writeJSONError(w, fmt.Sprintf("Job is %s and cannot be cancelled", job.Status), http.StatusConflict)
		return
	}
	if err := h.jobs.UpdateJobStatus(r.Context(), jobID, entity.JobStatusCancelled, ""); err != nil {
		h.serverError(w, "Failed to cancel job", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.CancelJobResponse{Status: "cancelled", Message: "Job cancelled"})
}

func (h *Handler) HandleRunSchedule(w http.ResponseWriter, r *http.Request) {
	var req request.RunScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" || req.UserID == "" {
		h.writeJSONError(w, "project_id and user_id are required", http.StatusBadRequest)
		return
	}

	jobID, err := h.scheduler.RunNow(r.Context(), req.ProjectID, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			h.writeJSONError(w, "Project has no schedule", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to run schedule", err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.RunScheduleResponse{Status: "queued", JobID: jobID})
}

func (h *Handler) HandleScheduleExecutions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sched, err := h.schedules.GetSchedule(r.Context(), chi.URLParam(r, "projectID"), userID)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			h.writeJSONError(w, "Project has no schedule", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load schedule", err)
		return
	}

	executions, err := h.schedules.RecentExecutions(r.Context(), sched.ID, recentRecordsLimit)
	if err != nil {
		h.serverError(w, "Failed to load executions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, executions)
}

// HandleTestWebhook fires a synthetic delivery at the webhook's endpoint
// without touching its delivery log or failure counter.
func (h *Handler) HandleTestWebhook(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	hook, err := h.webhooks.GetWebhook(r.Context(), chi.URLParam(r, "webhookID"), userID)
	if err != nil {
		if errors.Is(err, repository.ErrWebhookNotFound) {
			h.writeJSONError(w, "Webhook not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load webhook", err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.delivery.TestWebhook(r.Context(), hook))
}

func (h *Handler) HandleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	hook, err := h.webhooks.GetWebhook(r.Context(), chi.URLParam(r, "webhookID"), userID)
	if err != nil {
		if errors.Is(err, repository.ErrWebhookNotFound) {
			h.writeJSONError(w, "Webhook not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "Failed to load webhook", err)
		return
	}

	deliveries, err := h.webhooks.RecentDeliveries(r.Context(), hook.ID, recentRecordsLimit)
	if err != nil {
		h.serverError(w, "Failed to load deliveries", err)
		return
	}
	h.writeJSON(w, http.StatusOK, deliveries)
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, msg string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: msg})
}
