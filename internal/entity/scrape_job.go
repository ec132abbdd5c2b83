package entity

import "time"

// JobStatus is the lifecycle state of a scrape job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can no longer transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// TargetRunStatus is the per-target state within a job.
type TargetRunStatus string

const (
	TargetPending   TargetRunStatus = "pending"
	TargetRunning   TargetRunStatus = "running"
	TargetCompleted TargetRunStatus = "completed"
	TargetFailed    TargetRunStatus = "failed"
)

// JobTrigger records what caused a job to be created.
type JobTrigger string

const (
	TriggerManual    JobTrigger = "manual"
	TriggerScheduled JobTrigger = "scheduled"
	TriggerAPI       JobTrigger = "api"
)

// TargetStatus tracks the progress of a single target within a job.
type TargetStatus struct {
	TargetID     string          `json:"target_id"`
	Status       TargetRunStatus `json:"status"`
	Progress     int             `json:"progress"`
	ResultsCount int             `json:"results_count"`
	Error        string          `json:"error,omitempty"`
}

// JobOptions controls how much a job scrapes.
type JobOptions struct {
	MaxResultsPerTarget int        `json:"max_results_per_target"`
	IncludeReplies      bool       `json:"include_replies"`
	DateFrom            *time.Time `json:"date_from,omitempty"`
	DateTo              *time.Time `json:"date_to,omitempty"`
}

// JobStats are aggregate counters maintained during execution.
type JobStats struct {
	TargetsTotal     int `json:"targets_total"`
	TargetsCompleted int `json:"targets_completed"`
	ResultsTotal     int `json:"results_total"`
	RequestsMade     int `json:"requests_made"`
	ErrorsCount      int `json:"errors_count"`
}

// ScrapeJob is one execution pass over a subset of a project's targets.
// Targets are processed in order; the job is immutable once terminal.
type ScrapeJob struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	UserID       string         `json:"user_id"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	Targets      []TargetStatus `json:"targets"`
	Options      JobOptions     `json:"options"`
	Stats        JobStats       `json:"stats"`
	Trigger      JobTrigger     `json:"trigger"`
	TriggeredBy  string         `json:"triggered_by,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
