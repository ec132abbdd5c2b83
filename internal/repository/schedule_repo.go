package repository

import (
	"context"

	"github.com/user/scrapestudio/internal/entity"
)

// ScheduleRepository defines the contract for schedule persistence.
//
// RecordExecution is where execution-result reconciliation happens: a
// completed execution resets consecutiveFailures and recomputes nextRun from
// the frequency fields; a failed one increments the counter and either
// schedules a fast retry (now + 5 minutes) or, once maxRetries is reached,
// disables the schedule and clears nextRun.
type ScheduleRepository interface {
	// CreateSchedule inserts a schedule, computing nextRun when enabled.
	// ErrScheduleExists is returned if the project already has one.
	CreateSchedule(ctx context.Context, s *entity.Schedule) (*entity.Schedule, error)
	// GetSchedule retrieves the schedule of a project.
	GetSchedule(ctx context.Context, projectID, userID string) (*entity.Schedule, error)
	// UpdateSchedule applies the given schedule state, recomputing nextRun
	// when enabled and clearing it otherwise.
	UpdateSchedule(ctx context.Context, s *entity.Schedule) (*entity.Schedule, error)
	// GetDueSchedules returns up to limit enabled schedules with nextRun <= now.
	GetDueSchedules(ctx context.Context, limit int) ([]*entity.Schedule, error)
	// RecordExecution appends an execution record and reconciles the
	// schedule's failure counters and nextRun as described above.
	RecordExecution(ctx context.Context, scheduleID string, jobID string, status entity.ExecutionStatus, resultsCount int, execErr string) error
	// RecentExecutions lists the newest execution records for a schedule.
	RecentExecutions(ctx context.Context, scheduleID string, limit int) ([]*entity.ScheduleExecution, error)
}
