package synctask

import (
	"context"
	"time"
)

// Repository is the durable queue. Implemented in the infrastructure layer.
type Repository interface {
	// Enqueue inserts a pending task and notifies listeners in the same
	// transaction. created is false when a pending task for the item already
	// existed.
	Enqueue(ctx context.Context, itemID, reason string) (task *Task, created bool, err error)

	// ClaimNext marks the oldest ready pending task running and returns it.
	// It returns ErrNoTask when nothing is ready.
	ClaimNext(ctx context.Context) (*Task, error)

	Complete(ctx context.Context, id string) error

	// Retry puts a running task back to pending, to run after runAfter.
	Retry(ctx context.Context, id, lastError string, runAfter time.Time) error

	// Fail marks a task failed for good.
	Fail(ctx context.Context, id, lastError string) error

	// RequeueStale puts tasks left running for longer than olderThan back to
	// pending and returns how many were requeued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}
