package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/synctask"
	"finsync/internal/shared/logger"
)

// TaskQueue is the durable sync task queue the worker drains.
type TaskQueue interface {
	Drain(ctx context.Context, h synctask.Handler) (int, error)
	RecoverStale(ctx context.Context) (int, error)
}

// Codes after which another attempt cannot succeed until the user relinks.
var relinkCodes = map[string]bool{
	"ITEM_LOGIN_REQUIRED":  true,
	"INVALID_ACCESS_TOKEN": true,
	"ITEM_NOT_FOUND":       true,
	"ACCESS_NOT_GRANTED":   true,
}

const defaultPollInterval = 30 * time.Second

// TaskWorker drains the sync task queue whenever it is woken and on a poll
// interval, which also picks up retries whose run_after has passed.
type TaskWorker struct {
	queue        TaskQueue
	syncer       ItemSyncer
	pollInterval time.Duration
	log          zerolog.Logger

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewTaskWorker(log zerolog.Logger, queue TaskQueue, syncer ItemSyncer, pollInterval time.Duration) *TaskWorker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &TaskWorker{
		queue:        queue,
		syncer:       syncer,
		pollInterval: pollInterval,
		log:          log.With().Str("component", "task_worker").Logger(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Wake asks the worker to drain the queue. It never blocks; wakes that arrive
// while one is pending are merged. The payload is ignored.
func (w *TaskWorker) Wake(payload string) {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start requeues tasks a previous process left running and starts draining.
func (w *TaskWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(logger.WithContext(ctx, w.log))

	if n, err := w.queue.RecoverStale(ctx); err != nil {
		w.log.Error().Err(err).Msg("failed to recover stale tasks")
	} else if n > 0 {
		w.log.Info().Int("count", n).Msg("recovered stale tasks")
	}

	go w.run(ctx)
}

// Stop cancels the worker and waits for the current task to finish its
// bookkeeping.
func (w *TaskWorker) Stop() {
	w.once.Do(func() {
		if w.cancel == nil {
			close(w.done)
			return
		}
		w.cancel()
		<-w.done
	})
}

func (w *TaskWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
		w.drain(ctx)
	}
}

func (w *TaskWorker) drain(ctx context.Context) {
	n, err := w.queue.Drain(ctx, w.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.Error().Err(err).Int("processed", n).Msg("failed to drain sync tasks")
		return
	}
	if n > 0 {
		w.log.Info().Int("processed", n).Msg("sync tasks drained")
	}
}

// Handle runs the sync for one claimed task.
func (w *TaskWorker) Handle(ctx context.Context, t *synctask.Task) error {
	_, err := w.syncer.SyncItem(ctx, banksync.SyncRequest{ExternalItemID: t.ItemID})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, item.ErrItemNotFound),
		errors.Is(err, item.ErrInvalidItemID),
		errors.Is(err, banksync.ErrItemIDRequired):
		return synctask.Permanent(err)
	case errors.Is(err, banksync.ErrSyncFailed) && relinkCodes[banksync.ErrorCode(err)]:
		return synctask.Permanent(err)
	default:
		return err
	}
}
