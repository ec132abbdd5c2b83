package usecase

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"github.com/user/scrapestudio/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const analysisBatchSize = 10

// ExecutorDeps bundles the collaborators a ScrapeExecutor needs. One bundle
// is shared across all executors; per-job state lives on the executor itself.
type ExecutorDeps struct {
	Jobs      repository.JobRepository
	Targets   repository.TargetRepository
	Results   repository.ResultRepository
	Schedules repository.ScheduleRepository
	Scraper   repository.Scraper
	Analyzers repository.AnalyzerFactory
	Webhooks  *WebhookService
	Log       *zap.Logger
}

// ScrapeExecutor runs one scrape job: targets strictly in order, one scrape
// in flight per job, with pacing between targets from the project's rate
// limit. A target failure is recorded and execution moves on; only setup
// failures (analyzer construction, interrupted pacing) fail the whole job.
type ScrapeExecutor struct {
	deps    ExecutorDeps
	job     *entity.ScrapeJob
	project *entity.Project
	log     *zap.Logger

	cancelled atomic.Bool
}

func NewScrapeExecutor(deps ExecutorDeps, job *entity.ScrapeJob, project *entity.Project) *ScrapeExecutor {
	return &ScrapeExecutor{
		deps:    deps,
		job:     job,
		project: project,
		log:     deps.Log.With(zap.String("job_id", job.ID), zap.String("project_id", job.ProjectID)),
	}
}

// Cancel requests a stop. The flag is checked between targets, so the target
// currently scraping finishes first.
func (e *ScrapeExecutor) Cancel() {
	e.cancelled.Store(true)
}

// Execute runs the job to a terminal status. It owns the whole lifecycle:
// status transitions, webhooks and metrics included. The returned error is
// informational for the caller; the failure is already persisted.
func (e *ScrapeExecutor) Execute(ctx context.Context) error {
	start := time.Now()

	if err := e.deps.Jobs.UpdateJobStatus(ctx, e.job.ID, entity.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	e.log.Info("job started", zap.Int("targets", len(e.job.Targets)))
	e.deps.Webhooks.notifyJobStarted(ctx, e.job)

	resultsTotal, runErr := e.runTargets(ctx)
	duration := time.Since(start)

	switch {
	case e.cancelled.Load():
		if err := e.deps.Jobs.UpdateJobStatus(ctx, e.job.ID, entity.JobStatusCancelled, ""); err != nil {
			return fmt.Errorf("failed to mark job cancelled: %w", err)
		}
		metrics.JobsTotal.WithLabelValues(string(entity.JobStatusCancelled)).Inc()
		e.log.Info("job cancelled", zap.Int("results", resultsTotal))
		return nil

	case runErr != nil:
		if err := e.deps.Jobs.UpdateJobStatus(ctx, e.job.ID, entity.JobStatusFailed, runErr.Error()); err != nil {
			e.log.Error("failed to mark job failed", zap.Error(err))
		}
		metrics.JobsTotal.WithLabelValues(string(entity.JobStatusFailed)).Inc()
		e.deps.Webhooks.notifyJobFailed(ctx, e.job, runErr)
		e.recordScheduleOutcome(ctx, entity.ExecutionFailed, resultsTotal, runErr.Error())
		e.log.Error("job failed", zap.Error(runErr))
		return runErr

	default:
		if err := e.deps.Jobs.UpdateJobProgress(ctx, e.job.ID, 100); err != nil {
			e.log.Error("failed to update job progress", zap.Error(err))
		}
		if err := e.deps.Jobs.UpdateJobStatus(ctx, e.job.ID, entity.JobStatusCompleted, ""); err != nil {
			return fmt.Errorf("failed to mark job completed: %w", err)
		}
		metrics.JobsTotal.WithLabelValues(string(entity.JobStatusCompleted)).Inc()
		metrics.JobDuration.Observe(duration.Seconds())
		e.deps.Webhooks.notifyJobCompleted(ctx, e.job, resultsTotal, duration)
		e.recordScheduleOutcome(ctx, entity.ExecutionCompleted, resultsTotal, "")
		e.log.Info("job completed",
			zap.Int("results", resultsTotal), zap.Duration("duration", duration))
		return nil
	}
}

func (e *ScrapeExecutor) runTargets(ctx context.Context) (int, error) {
	analyzer, err := e.deps.Analyzers.Open(ctx, e.project)
	if err != nil {
		return 0, fmt.Errorf("failed to open analyzer: %w", err)
	}
	defer analyzer.Close()

	limits := e.project.Config.Limits
	delay := time.Duration(limits.RateLimitDelay * float64(time.Second))
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	maxResults := e.job.Options.MaxResultsPerTarget
	if maxResults <= 0 {
		maxResults = limits.MaxResultsPerTarget
	}

	total := len(e.job.Targets)
	resultsTotal := 0
	for i, ts := range e.job.Targets {
		if e.cancelled.Load() {
			return resultsTotal, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return resultsTotal, fmt.Errorf("pacing interrupted: %w", err)
		}

		stored, targetErr := e.runTarget(ctx, analyzer, ts.TargetID, maxResults)
		if targetErr != nil {
			e.recordTargetFailure(ctx, ts.TargetID, targetErr)
		} else {
			resultsTotal += stored
			metrics.TargetsTotal.WithLabelValues(string(entity.TargetCompleted)).Inc()
		}

		progress := int(math.Round(float64(i+1) / float64(total) * 100))
		if err := e.deps.Jobs.UpdateJobProgress(ctx, e.job.ID, progress); err != nil {
			e.log.Error("failed to update job progress", zap.Error(err))
		}
	}
	return resultsTotal, nil
}

func (e *ScrapeExecutor) runTarget(ctx context.Context, analyzer repository.Analyzer, targetID string, maxResults int) (int, error) {
	target, err := e.deps.Targets.GetTarget(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to load target: %w", err)
	}

	if err := e.deps.Jobs.UpdateTargetStatus(ctx, e.job.ID, targetID, entity.TargetRunning, 0, 0, ""); err != nil {
		e.log.Error("failed to mark target running", zap.String("target_id", targetID), zap.Error(err))
	}

	raw, err := e.deps.Scraper.Scrape(ctx, target.URL, target.Platform, maxResults, e.job.Options)
	if err != nil {
		return 0, fmt.Errorf("scrape failed: %w", err)
	}

	contents := make([]*entity.ResultContent, 0, len(raw))
	for _, item := range raw {
		if c := ParseRawItem(item); c != nil {
			contents = append(contents, c)
		}
	}
	if err := e.deps.Jobs.IncrementStats(ctx, e.job.ID, repository.StatRequestsMade, len(contents)); err != nil {
		e.log.Error("failed to update job stats", zap.Error(err))
	}

	analyses, analyzed := e.analyze(ctx, analyzer, contents)

	stored := 0
	for i, c := range contents {
		result := &entity.Result{
			ID:          uuid.NewString(),
			ProjectID:   e.job.ProjectID,
			TargetID:    targetID,
			UserID:      e.job.UserID,
			ScrapeJobID: e.job.ID,
			Content:     *c,
			Analysis:    analyses[i],
			Platform:    target.Platform,
			WordCount:   c.WordCount(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := e.deps.Results.Store(ctx, result); err != nil {
			e.log.Error("failed to store result",
				zap.String("target_id", targetID), zap.Error(err))
			continue
		}
		stored++
		metrics.ResultsStored.Inc()
	}

	if err := e.deps.Jobs.UpdateTargetStatus(ctx, e.job.ID, targetID, entity.TargetCompleted, 100, stored, ""); err != nil {
		e.log.Error("failed to mark target completed", zap.String("target_id", targetID), zap.Error(err))
	}
	if err := e.deps.Jobs.IncrementStats(ctx, e.job.ID, repository.StatTargetsCompleted, 1); err != nil {
		e.log.Error("failed to update job stats", zap.Error(err))
	}
	if err := e.deps.Jobs.IncrementStats(ctx, e.job.ID, repository.StatResultsTotal, stored); err != nil {
		e.log.Error("failed to update job stats", zap.Error(err))
	}

	if analyzed > 0 {
		e.deps.Webhooks.TriggerEvent(ctx, e.job.UserID, entity.EventAnalysisCompleted, map[string]any{
			"job_id":         e.job.ID,
			"target_id":      targetID,
			"analyzed_count": analyzed,
			"results_count":  stored,
		}, e.job.ProjectID)
	}

	e.log.Info("target completed",
		zap.String("target_id", targetID),
		zap.Int("scraped", len(raw)),
		zap.Int("stored", stored))
	return stored, nil
}

// analyze runs sentiment/emotion analysis in fixed-size batches. A failed
// batch leaves zero-value analyses for its items; the items are still stored.
func (e *ScrapeExecutor) analyze(ctx context.Context, analyzer repository.Analyzer, contents []*entity.ResultContent) ([]entity.AnalysisResult, int) {
	analyses := make([]entity.AnalysisResult, len(contents))
	analyzed := 0
	for start := 0; start < len(contents); start += analysisBatchSize {
		end := min(start+analysisBatchSize, len(contents))
		texts := make([]string, 0, end-start)
		for _, c := range contents[start:end] {
			texts = append(texts, c.Text)
		}

		results, err := analyzer.AnalyzeBatch(ctx, texts)
		if err != nil {
			e.log.Warn("batch analysis failed, storing items without analysis",
				zap.Int("batch_start", start), zap.Int("batch_size", len(texts)), zap.Error(err))
			continue
		}
		if len(results) != len(texts) {
			e.log.Warn("batch analysis returned wrong result count",
				zap.Int("want", len(texts)), zap.Int("got", len(results)))
			continue
		}
		copy(analyses[start:end], results)
		analyzed += len(results)
	}
	return analyses, analyzed
}

// recordScheduleOutcome reports a scheduled job's terminal result back to its
// schedule, which reconciles nextRun and the failure counter.
func (e *ScrapeExecutor) recordScheduleOutcome(ctx context.Context, status entity.ExecutionStatus, resultsCount int, execErr string) {
	if e.job.Trigger != entity.TriggerScheduled || e.job.TriggeredBy == "" || e.deps.Schedules == nil {
		return
	}
	if err := e.deps.Schedules.RecordExecution(ctx, e.job.TriggeredBy, e.job.ID, status, resultsCount, execErr); err != nil {
		e.log.Error("failed to record schedule execution outcome", zap.Error(err))
	}
}

func (e *ScrapeExecutor) recordTargetFailure(ctx context.Context, targetID string, targetErr error) {
	e.log.Warn("target failed", zap.String("target_id", targetID), zap.Error(targetErr))
	metrics.TargetsTotal.WithLabelValues(string(entity.TargetFailed)).Inc()

	if err := e.deps.Jobs.UpdateTargetStatus(ctx, e.job.ID, targetID, entity.TargetFailed, 0, 0, targetErr.Error()); err != nil {
		e.log.Error("failed to mark target failed", zap.String("target_id", targetID), zap.Error(err))
	}
	if err := e.deps.Jobs.IncrementStats(ctx, e.job.ID, repository.StatErrorsCount, 1); err != nil {
		e.log.Error("failed to update job stats", zap.Error(err))
	}

	e.deps.Webhooks.TriggerEvent(ctx, e.job.UserID, entity.EventTargetError, map[string]any{
		"job_id":    e.job.ID,
		"target_id": targetID,
		"error":     targetErr.Error(),
	}, e.job.ProjectID)
}
