package response

import "github.com/user/scrapestudio/internal/entity"

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateJobResponse struct {
	Status string            `json:"status"`
	Job    *entity.ScrapeJob `json:"job"`
}

type CancelJobResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type RunScheduleResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
	QueuedJobs int64  `json:"queued_jobs"`
}
