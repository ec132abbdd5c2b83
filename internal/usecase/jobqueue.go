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

// DefaultMaxConcurrentJobs bounds parallel job execution when no explicit
// limit is configured.
const DefaultMaxConcurrentJobs = 3

const popTimeout = time.Second

// JobQueue dispatches queued scrape jobs to executors, admitting at most
// maxConcurrent at a time. The backing queue holds only job ids; the
// dispatcher reloads job and project state on admission, so a job cancelled
// while still queued is skipped rather than run.
type JobQueue struct {
	queue    repository.QueueRepository
	jobs     repository.JobRepository
	projects repository.ProjectRepository
	deps     ExecutorDeps
	log      *zap.Logger

	maxConcurrent int
	slots         chan struct{}

	mu     sync.Mutex
	active map[string]*ScrapeExecutor

	wg             sync.WaitGroup
	dispatchCancel context.CancelFunc
	execCtx        context.Context
	execCancel     context.CancelFunc
}

func NewJobQueue(queue repository.QueueRepository, jobs repository.JobRepository, projects repository.ProjectRepository, deps ExecutorDeps, maxConcurrent int, log *zap.Logger) *JobQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	return &JobQueue{
		queue:         queue,
		jobs:          jobs,
		projects:      projects,
		deps:          deps,
		log:           log,
		maxConcurrent: maxConcurrent,
		slots:         make(chan struct{}, maxConcurrent),
		active:        make(map[string]*ScrapeExecutor),
	}
}

// Start launches the dispatch loop.
func (q *JobQueue) Start() {
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	q.dispatchCancel = dispatchCancel
	q.execCtx, q.execCancel = context.WithCancel(context.Background())

	q.wg.Add(1)
	go q.dispatch(dispatchCtx)
	q.log.Info("job queue started", zap.Int("max_concurrent", q.maxConcurrent))
}

// Stop shuts the queue down: intake stops immediately, then running jobs are
// given until ctx expires to finish before their contexts are cancelled.
func (q *JobQueue) Stop(ctx context.Context) error {
	q.dispatchCancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("job queue stopped")
		return nil
	case <-ctx.Done():
		q.execCancel()
		<-done
		q.log.Warn("job queue stopped with jobs interrupted")
		return ctx.Err()
	}
}

// Enqueue adds a queued job to the dispatch queue. The project argument is
// part of the contract for callers that already resolved it, but dispatch
// reloads both records to pick up changes made while the job waited.
func (q *JobQueue) Enqueue(ctx context.Context, job *entity.ScrapeJob, project *entity.Project) error {
	if job.Status != entity.JobStatusQueued {
		return fmt.Errorf("job %s is %s, not queued", job.ID, job.Status)
	}
	if err := q.queue.Push(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyQueued) {
			return err
		}
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	metrics.JobsInQueue.Inc()
	q.log.Info("job enqueued",
		zap.String("job_id", job.ID), zap.String("project_id", project.ID))
	return nil
}

// CancelJob flags an actively executing job for cancellation. It returns
// false when the job is not currently executing; callers handle the
// queued-job case through the persistence layer.
func (q *JobQueue) CancelJob(jobID string) bool {
	q.mu.Lock()
	exec, ok := q.active[jobID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	exec.Cancel()
	q.log.Info("job cancellation requested", zap.String("job_id", jobID))
	return true
}

// ActiveCount returns the number of jobs currently executing.
func (q *JobQueue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *JobQueue) dispatch(ctx context.Context) {
	defer q.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		jobID, err := q.queue.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, repository.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			q.log.Error("failed to pop from job queue", zap.Error(err))
			time.Sleep(popTimeout)
			continue
		}
		metrics.JobsInQueue.Dec()

		select {
		case q.slots <- struct{}{}:
		case <-ctx.Done():
			// Put the id back so a restart picks it up.
			if err := q.queue.Push(context.Background(), jobID); err != nil {
				q.log.Error("failed to requeue job on shutdown",
					zap.String("job_id", jobID), zap.Error(err))
			} else {
				metrics.JobsInQueue.Inc()
			}
			return
		}

		exec, ok := q.admit(ctx, jobID)
		if !ok {
			<-q.slots
			continue
		}

		q.mu.Lock()
		q.active[jobID] = exec
		q.mu.Unlock()
		metrics.JobsRunning.Inc()

		q.wg.Add(1)
		go q.run(jobID, exec)
	}
}

// admit reloads the job and its project and builds an executor, or reports
// why the job should be skipped.
func (q *JobQueue) admit(ctx context.Context, jobID string) (*ScrapeExecutor, bool) {
	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		q.log.Error("failed to load queued job", zap.String("job_id", jobID), zap.Error(err))
		return nil, false
	}
	if job.Status != entity.JobStatusQueued {
		q.log.Info("skipping job no longer queued",
			zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return nil, false
	}

	project, err := q.projects.GetProject(ctx, job.ProjectID, job.UserID)
	if err != nil {
		q.log.Error("failed to load project for queued job",
			zap.String("job_id", jobID), zap.String("project_id", job.ProjectID), zap.Error(err))
		if uerr := q.jobs.UpdateJobStatus(ctx, jobID, entity.JobStatusFailed, "project not found"); uerr != nil {
			q.log.Error("failed to mark job failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		return nil, false
	}

	return NewScrapeExecutor(q.deps, job, project), true
}

func (q *JobQueue) run(jobID string, exec *ScrapeExecutor) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.active, jobID)
		q.mu.Unlock()
		metrics.JobsRunning.Dec()
		<-q.slots

		if r := recover(); r != nil {
			q.log.Error("executor panic", zap.String("job_id", jobID), zap.Any("panic", r))
			msg := fmt.Sprintf("internal error: %v", r)
			if err := q.jobs.UpdateJobStatus(context.Background(), jobID, entity.JobStatusFailed, msg); err != nil {
				q.log.Error("failed to mark panicked job failed",
					zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}()

	if err := exec.Execute(q.execCtx); err != nil {
		q.log.Warn("job finished with error", zap.String("job_id", jobID), zap.Error(err))
	}
}
