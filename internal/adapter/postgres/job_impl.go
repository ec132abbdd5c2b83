package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
)

// JobRepoImpl provides a concrete implementation for the JobRepository interface using PostgreSQL.
// Job stats live in separate integer columns and per-target state in its own
// table, so every mutation is a targeted UPDATE that concurrent workers
// cannot clobber.
type JobRepoImpl struct {
	db *pgxpool.Pool
}

// NewJobRepo creates a new instance of JobRepoImpl.
func NewJobRepo(db *pgxpool.Pool) *JobRepoImpl {
	return &JobRepoImpl{db: db}
}

// CreateJob inserts a queued job and one row per selected target.
func (r *JobRepoImpl) CreateJob(ctx context.Context, projectID, userID string, targetIDs []string, opts entity.JobOptions, trigger entity.JobTrigger, triggeredBy string) (*entity.ScrapeJob, error) {
	if len(targetIDs) == 0 {
		rows, err := r.db.Query(ctx, `
			SELECT id FROM targets
			WHERE project_id = $1 AND user_id = $2 AND status = 'active'
			ORDER BY created_at;
		`, projectID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to select active targets: %w", err)
		}
		targetIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("failed to collect active targets: %w", err)
		}
	}
	if len(targetIDs) == 0 {
		return nil, repository.ErrNoActiveTargets
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job options: %w", err)
	}

	job := &entity.ScrapeJob{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      userID,
		Status:      entity.JobStatusQueued,
		Options:     opts,
		Trigger:     trigger,
		TriggeredBy: triggeredBy,
	}
	for _, id := range targetIDs {
		job.Targets = append(job.Targets, entity.TargetStatus{TargetID: id, Status: entity.TargetPending})
	}
	job.Stats.TargetsTotal = len(job.Targets)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO scrape_jobs (id, project_id, user_id, status, options, trigger, triggered_by, targets_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at;
	`, job.ID, projectID, userID, job.Status, optsJSON, trigger, triggeredBy, job.Stats.TargetsTotal).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	batch := &pgx.Batch{}
	for i, id := range targetIDs {
		batch.Queue(`
			INSERT INTO job_targets (job_id, target_id, position, status)
			VALUES ($1, $2, $3, $4);
		`, job.ID, id, i, entity.TargetPending)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert job targets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job together with its per-target statuses.
func (r *JobRepoImpl) GetJob(ctx context.Context, jobID string) (*entity.ScrapeJob, error) {
	var job entity.ScrapeJob
	var optsJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, project_id, user_id, status, progress, options, trigger, triggered_by,
		       targets_total, targets_completed, results_total, requests_made, errors_count,
		       started_at, completed_at, error_message, created_at, updated_at
		FROM scrape_jobs
		WHERE id = $1;
	`, jobID).Scan(
		&job.ID, &job.ProjectID, &job.UserID, &job.Status, &job.Progress, &optsJSON,
		&job.Trigger, &job.TriggeredBy,
		&job.Stats.TargetsTotal, &job.Stats.TargetsCompleted, &job.Stats.ResultsTotal,
		&job.Stats.RequestsMade, &job.Stats.ErrorsCount,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, err
	}
	if len(optsJSON) > 0 {
		if err := json.Unmarshal(optsJSON, &job.Options); err != nil {
			return nil, fmt.Errorf("failed to decode job options: %w", err)
		}
	}

	rows, err := r.db.Query(ctx, `
		SELECT target_id, status, progress, results_count, error
		FROM job_targets
		WHERE job_id = $1
		ORDER BY position;
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ts entity.TargetStatus
		if err := rows.Scan(&ts.TargetID, &ts.Status, &ts.Progress, &ts.ResultsCount, &ts.Error); err != nil {
			return nil, err
		}
		job.Targets = append(job.Targets, ts)
	}
	return &job, rows.Err()
}

// UpdateJobStatus transitions a job, stamping startedAt and completedAt as
// the status dictates.
func (r *JobRepoImpl) UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus, errorMessage string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scrape_jobs SET
			status = $2,
			error_message = $3,
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1;
	`, jobID, status, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// UpdateJobProgress sets the 0-100 overall progress.
func (r *JobRepoImpl) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scrape_jobs SET progress = $2, updated_at = now() WHERE id = $1;
	`, jobID, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// UpdateTargetStatus updates one target's row within a job.
func (r *JobRepoImpl) UpdateTargetStatus(ctx context.Context, jobID, targetID string, status entity.TargetRunStatus, progress, resultsCount int, targetErr string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE job_targets SET status = $3, progress = $4, results_count = $5, error = $6
		WHERE job_id = $1 AND target_id = $2;
	`, jobID, targetID, status, progress, resultsCount, targetErr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrTargetNotFound
	}
	return nil
}

// IncrementStats atomically adds delta to one stats counter column.
func (r *JobRepoImpl) IncrementStats(ctx context.Context, jobID string, field repository.StatField, delta int) error {
	var column string
	switch field {
	case repository.StatTargetsCompleted:
		column = "targets_completed"
	case repository.StatResultsTotal:
		column = "results_total"
	case repository.StatRequestsMade:
		column = "requests_made"
	case repository.StatErrorsCount:
		column = "errors_count"
	default:
		return fmt.Errorf("unknown stat field %q", field)
	}

	query := fmt.Sprintf(`UPDATE scrape_jobs SET %s = %s + $2, updated_at = now() WHERE id = $1;`, column, column)
	tag, err := r.db.Exec(ctx, query, jobID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}
