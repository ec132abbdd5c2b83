package repository

import (
	"context"

	"github.com/user/scrapestudio/internal/entity"
)

// StatField names a job stats counter that can be incremented atomically.
type StatField string

const (
	StatTargetsCompleted StatField = "targets_completed"
	StatResultsTotal     StatField = "results_total"
	StatRequestsMade     StatField = "requests_made"
	StatErrorsCount      StatField = "errors_count"
)

// JobRepository defines the contract for scrape job persistence. All mutations
// are targeted field updates so that concurrent workers touching different
// targets of the same job never overwrite each other.
type JobRepository interface {
	// CreateJob creates a queued job for the given targets. A nil or empty
	// targetIDs selects all active targets of the project; ErrNoActiveTargets
	// is returned when that selection is empty. triggeredBy identifies the
	// origin (schedule id for scheduled jobs, user id otherwise).
	CreateJob(ctx context.Context, projectID, userID string, targetIDs []string, opts entity.JobOptions, trigger entity.JobTrigger, triggeredBy string) (*entity.ScrapeJob, error)
	// GetJob retrieves a job with its per-target statuses.
	GetJob(ctx context.Context, jobID string) (*entity.ScrapeJob, error)
	// UpdateJobStatus transitions the job. Entering "running" stamps
	// startedAt; entering a terminal status stamps completedAt.
	UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus, errorMessage string) error
	// UpdateJobProgress sets the 0-100 overall progress.
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
	// UpdateTargetStatus updates one target's sub-record within the job.
	UpdateTargetStatus(ctx context.Context, jobID, targetID string, status entity.TargetRunStatus, progress, resultsCount int, targetErr string) error
	// IncrementStats atomically adds delta to one stats counter.
	IncrementStats(ctx context.Context, jobID string, field StatField, delta int) error
}
