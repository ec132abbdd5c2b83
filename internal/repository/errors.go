package repository

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("scrape job not found")
	// ErrTargetNotFound is returned when a target id does not exist.
	ErrTargetNotFound = errors.New("target not found")
	// ErrProjectNotFound is returned when a project id does not exist for the user.
	ErrProjectNotFound = errors.New("project not found")
	// ErrScheduleNotFound is returned when a project has no schedule.
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrScheduleExists is returned when creating a second schedule for a project.
	ErrScheduleExists = errors.New("schedule already exists for this project")
	// ErrWebhookNotFound is returned when a webhook id does not exist.
	ErrWebhookNotFound = errors.New("webhook not found")
	// ErrNoActiveTargets is returned when a job is created for a project with
	// no active targets.
	ErrNoActiveTargets = errors.New("no active targets found for this project")
	// ErrQueueEmpty is returned by Pop when no job is waiting.
	ErrQueueEmpty = errors.New("job queue is empty")
	// ErrAlreadyQueued is returned by Push when the job id is already pending.
	ErrAlreadyQueued = errors.New("job is already queued")
)
