package repository

import (
	"context"
	"time"
)

// QueueRepository defines the interface for the FIFO queue of job ids waiting
// to be dispatched. The queue holds only ids; the dispatcher reloads the job
// and project records before admitting a job, so a job cancelled while still
// queued is simply skipped.
type QueueRepository interface {
	// Push adds a job id to the end of the queue. ErrAlreadyQueued is
	// returned when the id is already pending.
	Push(ctx context.Context, jobID string) error
	// Pop removes and returns the job id at the front of the queue, blocking
	// up to timeout. ErrQueueEmpty is returned when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	// Size returns the current number of queued job ids.
	Size(ctx context.Context) (int64, error)
}
