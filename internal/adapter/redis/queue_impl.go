package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/scrapestudio/internal/repository"
)

const (
	jobQueueKey      = "scrapestudio:jobs:queue"
	jobPendingPrefix = "scrapestudio:jobs:pending:"

	// Guard keys expire on their own in case a Pop never happens (e.g. the
	// process died between LPush and BRPop on a restart with a flushed list).
	pendingGuardTTL = 24 * time.Hour
)

// QueueRepoImpl provides a concrete implementation for the QueueRepository interface using Redis Lists.
// Job ids wait in a FIFO list; a per-id guard key deduplicates enqueues.
type QueueRepoImpl struct {
	client *redis.Client
}

// NewQueueRepo creates a new instance of QueueRepoImpl.
func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

// Push adds a job id to the queue unless it is already pending.
func (r *QueueRepoImpl) Push(ctx context.Context, jobID string) error {
	ok, err := r.client.SetNX(ctx, jobPendingPrefix+jobID, 1, pendingGuardTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrAlreadyQueued
	}
	if err := r.client.LPush(ctx, jobQueueKey, jobID).Err(); err != nil {
		r.client.Del(ctx, jobPendingPrefix+jobID)
		return err
	}
	return nil
}

// Pop blocks up to timeout for the oldest queued job id.
func (r *QueueRepoImpl) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := r.client.BRPop(ctx, timeout, jobQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrQueueEmpty
		}
		return "", err
	}
	jobID := vals[1]
	r.client.Del(ctx, jobPendingPrefix+jobID)
	return jobID, nil
}

// Size returns the current number of queued job ids.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, jobQueueKey).Result()
}
