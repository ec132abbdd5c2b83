package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"go.uber.org/zap"
)

func newTestQueue(env *execEnv, scraper repository.Scraper, maxConcurrent int) (*JobQueue, *fakeQueueRepo) {
	queueRepo := newFakeQueueRepo()
	q := NewJobQueue(queueRepo, env.jobs, newFakeProjectRepo(env.project), env.deps(scraper), maxConcurrent, zap.NewNop())
	return q, queueRepo
}

func waitForStatus(t *testing.T, env *execEnv, jobID string, want entity.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := env.jobs.GetJob(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, want)
}

func TestJobQueueExecutesEnqueuedJob(t *testing.T) {
	env := newExecEnv(1)
	env.scraper.items["https://example.com/1"] = rawItems(2)
	q, _ := newTestQueue(env, nil, 1)

	q.Start()
	defer q.Stop(context.Background())

	job := env.createJob(t, "t1")
	require.NoError(t, q.Enqueue(context.Background(), job, env.project))

	waitForStatus(t, env, job.ID, entity.JobStatusCompleted)
	assert.Len(t, env.results.stored(), 2)
}

func TestJobQueueRejectsNonQueuedJob(t *testing.T) {
	env := newExecEnv(1)
	q, _ := newTestQueue(env, nil, 1)

	job := env.createJob(t, "t1")
	job.Status = entity.JobStatusRunning
	assert.Error(t, q.Enqueue(context.Background(), job, env.project))
}

func TestJobQueueRejectsDuplicateEnqueue(t *testing.T) {
	env := newExecEnv(1)
	q, _ := newTestQueue(env, nil, 1)

	job := env.createJob(t, "t1")
	require.NoError(t, q.Enqueue(context.Background(), job, env.project))
	assert.ErrorIs(t, q.Enqueue(context.Background(), job, env.project), repository.ErrAlreadyQueued)
}

func TestJobQueueSkipsJobCancelledWhileQueued(t *testing.T) {
	env := newExecEnv(1)
	env.scraper.items["https://example.com/1"] = rawItems(2)
	q, queueRepo := newTestQueue(env, nil, 1)

	job := env.createJob(t, "t1")
	require.NoError(t, q.Enqueue(context.Background(), job, env.project))
	require.NoError(t, env.jobs.UpdateJobStatus(context.Background(), job.ID, entity.JobStatusCancelled, ""))

	q.Start()
	defer q.Stop(context.Background())

	require.Eventually(t, func() bool {
		n, _ := queueRepo.Size(context.Background())
		return n == 0
	}, 5*time.Second, 10*time.Millisecond)

	got, err := env.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCancelled, got.Status)
	assert.Empty(t, env.results.stored())
}

func TestJobQueueEnforcesConcurrencyLimit(t *testing.T) {
	env := newExecEnv(4)

	var running, peak atomic.Int32
	scraper := scraperFunc(func(_ context.Context, _, _ string, _ int, _ entity.JobOptions) ([]entity.RawItem, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		running.Add(-1)
		return rawItems(1), nil
	})
	q, _ := newTestQueue(env, scraper, 2)

	q.Start()
	defer q.Stop(context.Background())

	var jobs []*entity.ScrapeJob
	for i := 1; i <= 4; i++ {
		job := env.createJob(t, fmt.Sprintf("t%d", i))
		require.NoError(t, q.Enqueue(context.Background(), job, env.project))
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		waitForStatus(t, env, job.ID, entity.JobStatusCompleted)
	}

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestJobQueueCancelJob(t *testing.T) {
	env := newExecEnv(2)
	release := make(chan struct{})
	scraper := scraperFunc(func(_ context.Context, _, _ string, _ int, _ entity.JobOptions) ([]entity.RawItem, error) {
		<-release
		return rawItems(1), nil
	})
	q, _ := newTestQueue(env, scraper, 1)

	q.Start()
	defer q.Stop(context.Background())

	assert.False(t, q.CancelJob("no-such-job"))

	job := env.createJob(t, "t1", "t2")
	require.NoError(t, q.Enqueue(context.Background(), job, env.project))
	require.Eventually(t, func() bool { return q.ActiveCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.True(t, q.CancelJob(job.ID))
	close(release)

	waitForStatus(t, env, job.ID, entity.JobStatusCancelled)
	got, _ := env.jobs.GetJob(context.Background(), job.ID)
	assert.Equal(t, entity.TargetPending, got.Targets[1].Status)
	require.Eventually(t, func() bool { return q.ActiveCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestJobQueueMarksJobFailedWhenProjectMissing(t *testing.T) {
	env := newExecEnv(1)
	queueRepo := newFakeQueueRepo()
	q := NewJobQueue(queueRepo, env.jobs, newFakeProjectRepo(), env.deps(nil), 1, zap.NewNop())

	q.Start()
	defer q.Stop(context.Background())

	job := env.createJob(t, "t1")
	require.NoError(t, q.Enqueue(context.Background(), job, env.project))

	waitForStatus(t, env, job.ID, entity.JobStatusFailed)
	got, _ := env.jobs.GetJob(context.Background(), job.ID)
	assert.Equal(t, "project not found", got.ErrorMessage)
}

func TestJobQueueSurvivesExecutorPanic(t *testing.T) {
	env := newExecEnv(2)
	scraper := scraperFunc(func(_ context.Context, url, _ string, _ int, _ entity.JobOptions) ([]entity.RawItem, error) {
		if url == "https://example.com/1" {
			panic("scraper blew up")
		}
		return rawItems(1), nil
	})
	q, _ := newTestQueue(env, scraper, 1)

	q.Start()
	defer q.Stop(context.Background())

	bad := env.createJob(t, "t1")
	good := env.createJob(t, "t2")
	require.NoError(t, q.Enqueue(context.Background(), bad, env.project))
	require.NoError(t, q.Enqueue(context.Background(), good, env.project))

	waitForStatus(t, env, bad.ID, entity.JobStatusFailed)
	waitForStatus(t, env, good.ID, entity.JobStatusCompleted)

	got, _ := env.jobs.GetJob(context.Background(), bad.ID)
	assert.Contains(t, got.ErrorMessage, "internal error")
}
