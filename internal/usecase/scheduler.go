package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"github.com/user/scrapestudio/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultSchedulerInterval is the polling cadence for due schedules.
const DefaultSchedulerInterval = 60 * time.Second

const dueScheduleBatch = 50

// SchedulerService polls for due schedules and turns each into a queued
// scrape job. Execution outcomes flow back through
// ScheduleRepository.RecordExecution, which owns the nextRun and
// failure-counter reconciliation.
type SchedulerService struct {
	schedules repository.ScheduleRepository
	jobs      repository.JobRepository
	projects  repository.ProjectRepository
	queue     *JobQueue
	webhooks  *WebhookService
	interval  time.Duration
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSchedulerService(schedules repository.ScheduleRepository, jobs repository.JobRepository, projects repository.ProjectRepository, queue *JobQueue, webhooks *WebhookService, interval time.Duration, log *zap.Logger) *SchedulerService {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &SchedulerService{
		schedules: schedules,
		jobs:      jobs,
		projects:  projects,
		queue:     queue,
		webhooks:  webhooks,
		interval:  interval,
		log:       log,
	}
}

// Start launches the polling loop. The first pass runs immediately so due
// schedules are not delayed by a full interval after startup.
func (s *SchedulerService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the polling loop and waits for an in-flight pass to finish.
func (s *SchedulerService) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *SchedulerService) loop(ctx context.Context) {
	defer s.wg.Done()

	s.processDue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processDue(ctx)
		}
	}
}

// processDue fires every due schedule. A failure in one schedule is recorded
// and never aborts the pass.
func (s *SchedulerService) processDue(ctx context.Context) {
	metrics.SchedulerTicks.Inc()

	due, err := s.schedules.GetDueSchedules(ctx, dueScheduleBatch)
	if err != nil {
		s.log.Error("failed to query due schedules", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Info("processing due schedules", zap.Int("count", len(due)))

	for _, sched := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.fire(ctx, sched); err != nil {
			s.log.Warn("schedule execution failed",
				zap.String("schedule_id", sched.ID),
				zap.String("project_id", sched.ProjectID),
				zap.Error(err))
		}
	}
}

// RunNow triggers a project's schedule immediately, bypassing nextRun. It
// returns the id of the created job.
func (s *SchedulerService) RunNow(ctx context.Context, projectID, userID string) (string, error) {
	sched, err := s.schedules.GetSchedule(ctx, projectID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load schedule: %w", err)
	}
	return s.fire(ctx, sched)
}

// fire resolves the schedule's project, creates a scheduled job and enqueues
// it. Every outcome is recorded as a schedule execution: skipped when the
// project is gone, failed on creation or enqueue errors, running on success.
func (s *SchedulerService) fire(ctx context.Context, sched *entity.Schedule) (string, error) {
	project, err := s.projects.GetProject(ctx, sched.ProjectID, sched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			// The schedule stays due until an operator fixes or disables it.
			s.recordOutcome(ctx, sched, "", entity.ExecutionSkipped, "project not found")
			return "", fmt.Errorf("project %s not found", sched.ProjectID)
		}
		s.recordOutcome(ctx, sched, "", entity.ExecutionFailed, err.Error())
		s.notifyFailure(ctx, sched, err)
		return "", fmt.Errorf("failed to load project: %w", err)
	}

	job, err := s.jobs.CreateJob(ctx, sched.ProjectID, sched.UserID, nil, entity.JobOptions{}, entity.TriggerScheduled, sched.ID)
	if err != nil {
		s.recordOutcome(ctx, sched, "", entity.ExecutionFailed, err.Error())
		s.notifyFailure(ctx, sched, err)
		return "", fmt.Errorf("failed to create scheduled job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job, project); err != nil {
		s.recordOutcome(ctx, sched, job.ID, entity.ExecutionFailed, err.Error())
		s.notifyFailure(ctx, sched, err)
		return "", fmt.Errorf("failed to enqueue scheduled job: %w", err)
	}

	s.recordOutcome(ctx, sched, job.ID, entity.ExecutionRunning, "")
	s.webhooks.notifyScheduleTriggered(ctx, sched, job.ID)
	s.log.Info("schedule fired",
		zap.String("schedule_id", sched.ID),
		zap.String("project_id", sched.ProjectID),
		zap.String("job_id", job.ID))
	return job.ID, nil
}

func (s *SchedulerService) recordOutcome(ctx context.Context, sched *entity.Schedule, jobID string, status entity.ExecutionStatus, execErr string) {
	metrics.SchedulesFired.WithLabelValues(string(status)).Inc()
	if err := s.schedules.RecordExecution(ctx, sched.ID, jobID, status, 0, execErr); err != nil {
		s.log.Error("failed to record schedule execution",
			zap.String("schedule_id", sched.ID), zap.Error(err))
	}
}

func (s *SchedulerService) notifyFailure(ctx context.Context, sched *entity.Schedule, cause error) {
	if !sched.NotifyOnFailure {
		return
	}
	s.webhooks.notifyScheduleFailed(ctx, sched, cause)
}
