package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
)

const pgUniqueViolation = "23505"

// ScheduleRepoImpl provides a concrete implementation for the ScheduleRepository interface using PostgreSQL.
type ScheduleRepoImpl struct {
	db *pgxpool.Pool
}

// NewScheduleRepo creates a new instance of ScheduleRepoImpl.
func NewScheduleRepo(db *pgxpool.Pool) *ScheduleRepoImpl {
	return &ScheduleRepoImpl{db: db}
}

const scheduleColumns = `
	id, project_id, user_id, enabled, frequency, time_of_day, day_of_week, day_of_month,
	timezone, max_retries, notify_on_failure, next_run, last_run, last_status,
	consecutive_failures, created_at, updated_at`

func scanSchedule(row pgx.Row) (*entity.Schedule, error) {
	var s entity.Schedule
	var lastStatus *string
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.UserID, &s.Enabled, &s.Frequency, &s.Time, &s.DayOfWeek, &s.DayOfMonth,
		&s.Timezone, &s.MaxRetries, &s.NotifyOnFailure, &s.NextRun, &s.LastRun, &lastStatus,
		&s.ConsecutiveFailures, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastStatus != nil {
		s.LastStatus = entity.ExecutionStatus(*lastStatus)
	}
	return &s, nil
}

// CreateSchedule inserts a schedule, computing nextRun when enabled. The
// unique index on project_id enforces one schedule per project.
func (r *ScheduleRepoImpl) CreateSchedule(ctx context.Context, s *entity.Schedule) (*entity.Schedule, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := reconcileNextRun(s); err != nil {
		return nil, err
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO schedules (id, project_id, user_id, enabled, frequency, time_of_day, day_of_week,
		                       day_of_month, timezone, max_retries, notify_on_failure, next_run)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at;
	`, s.ID, s.ProjectID, s.UserID, s.Enabled, s.Frequency, s.Time, s.DayOfWeek,
		s.DayOfMonth, s.Timezone, s.MaxRetries, s.NotifyOnFailure, s.NextRun).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, repository.ErrScheduleExists
		}
		return nil, fmt.Errorf("failed to insert schedule: %w", err)
	}
	return s, nil
}

// GetSchedule retrieves the schedule of a project.
func (r *ScheduleRepoImpl) GetSchedule(ctx context.Context, projectID, userID string) (*entity.Schedule, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+scheduleColumns+`
		FROM schedules
		WHERE project_id = $1 AND user_id = $2;
	`, projectID, userID)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrScheduleNotFound
	}
	return s, err
}

// UpdateSchedule applies the given schedule state, keeping the
// nextRun-iff-enabled invariant.
func (r *ScheduleRepoImpl) UpdateSchedule(ctx context.Context, s *entity.Schedule) (*entity.Schedule, error) {
	if err := reconcileNextRun(s); err != nil {
		return nil, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE schedules SET
			enabled = $2, frequency = $3, time_of_day = $4, day_of_week = $5, day_of_month = $6,
			timezone = $7, max_retries = $8, notify_on_failure = $9, next_run = $10,
			updated_at = now()
		WHERE id = $1;
	`, s.ID, s.Enabled, s.Frequency, s.Time, s.DayOfWeek, s.DayOfMonth,
		s.Timezone, s.MaxRetries, s.NotifyOnFailure, s.NextRun)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrScheduleNotFound
	}
	return s, nil
}

// GetDueSchedules returns up to limit enabled schedules whose nextRun has
// passed, oldest first.
func (r *ScheduleRepoImpl) GetDueSchedules(ctx context.Context, limit int) ([]*entity.Schedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+scheduleColumns+`
		FROM schedules
		WHERE enabled AND next_run IS NOT NULL AND next_run <= now()
		ORDER BY next_run
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*entity.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, s)
	}
	return due, rows.Err()
}

// RecordExecution upserts the execution record for (scheduleID, jobID) and
// reconciles the schedule row under a row lock: completed resets the failure
// counter and restores the cadence, failed fast-retries or disables at
// maxRetries, skipped leaves the schedule due.
func (r *ScheduleRepoImpl) RecordExecution(ctx context.Context, scheduleID, jobID string, status entity.ExecutionStatus, resultsCount int, execErr string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT`+scheduleColumns+`
		FROM schedules
		WHERE id = $1
		FOR UPDATE;
	`, scheduleID)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrScheduleNotFound
		}
		return err
	}

	now := time.Now().UTC()
	if err := s.ApplyExecution(status, now); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE schedules SET
			enabled = $2, next_run = $3, last_run = $4, last_status = $5,
			consecutive_failures = $6, updated_at = now()
		WHERE id = $1;
	`, s.ID, s.Enabled, s.NextRun, s.LastRun, string(s.LastStatus), s.ConsecutiveFailures)
	if err != nil {
		return fmt.Errorf("failed to reconcile schedule: %w", err)
	}

	var completedAt *time.Time
	if status == entity.ExecutionCompleted || status == entity.ExecutionFailed {
		completedAt = &now
	}
	if jobID != "" {
		// The running record written at fire time becomes the terminal one.
		_, err = tx.Exec(ctx, `
			INSERT INTO schedule_executions (id, schedule_id, job_id, status, started_at, completed_at, results_count, error, retry_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (schedule_id, job_id) DO UPDATE SET
				status = EXCLUDED.status,
				completed_at = EXCLUDED.completed_at,
				results_count = EXCLUDED.results_count,
				error = EXCLUDED.error;
		`, uuid.NewString(), scheduleID, jobID, status, now, completedAt, resultsCount, execErr, s.ConsecutiveFailures)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO schedule_executions (id, schedule_id, status, started_at, completed_at, results_count, error, retry_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
		`, uuid.NewString(), scheduleID, status, now, completedAt, resultsCount, execErr, s.ConsecutiveFailures)
	}
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentExecutions lists the newest execution records for a schedule.
func (r *ScheduleRepoImpl) RecentExecutions(ctx context.Context, scheduleID string, limit int) ([]*entity.ScheduleExecution, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, schedule_id, COALESCE(job_id, ''), status, started_at, completed_at, results_count, error, retry_count
		FROM schedule_executions
		WHERE schedule_id = $1
		ORDER BY started_at DESC
		LIMIT $2;
	`, scheduleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ScheduleExecution
	for rows.Next() {
		var e entity.ScheduleExecution
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.JobID, &e.Status, &e.StartedAt,
			&e.CompletedAt, &e.ResultsCount, &e.Error, &e.RetryCount); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// reconcileNextRun recomputes nextRun for CRUD paths so the invariant holds
// outside the scheduler loop too.
func reconcileNextRun(s *entity.Schedule) error {
	if !s.Enabled {
		s.NextRun = nil
		return nil
	}
	next, err := s.NextRunAfter(time.Now())
	if err != nil {
		return err
	}
	s.NextRun = &next
	return nil
}
