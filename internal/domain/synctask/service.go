package synctask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/shared/logger"
)

// Handler runs one claimed task. Errors wrapped with Permanent are not
// retried.
type Handler func(ctx context.Context, t *Task) error

// Options tune retries.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// StaleAfter is how long a task may stay running before RecoverStale
	// requeues it.
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 30 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	return o
}

type Service struct {
	repo Repository
	opts Options
	now  func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts.withDefaults(), now: time.Now}
}

// Enqueue schedules a sync of itemID. A pending task for the same item
// absorbs the request.
func (s *Service) Enqueue(ctx context.Context, itemID, reason string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return ErrInvalidItemID
	}
	if !IsValidReason(reason) {
		return ErrInvalidReason
	}

	t, created, err := s.repo.Enqueue(ctx, itemID, reason)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync task: %w", err)
	}

	logger.FromContext(ctx).Debug().
		Str("item_id", itemID).
		Str("reason", reason).
		Str("task_id", t.ID).
		Bool("created", created).
		Msg("sync task enqueued")
	return nil
}

// ProcessNext claims one ready task and runs h on it. It reports false when
// no task was ready.
func (s *Service) ProcessNext(ctx context.Context, h Handler) (bool, error) {
	t, err := s.repo.ClaimNext(ctx)
	if errors.Is(err, ErrNoTask) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim sync task: %w", err)
	}

	log := logger.FromContext(ctx).With().
		Str("task_id", t.ID).
		Str("item_id", t.ItemID).
		Int("attempt", t.Attempts).
		Logger()

	herr := h(logger.WithContext(ctx, log), t)
	// Bookkeeping must land even when the handler ran out the context.
	bctx := context.WithoutCancel(ctx)

	if herr == nil {
		if err := s.repo.Complete(bctx, t.ID); err != nil {
			return true, fmt.Errorf("failed to complete sync task: %w", err)
		}
		log.Debug().Msg("sync task done")
		return true, nil
	}

	if IsPermanent(herr) || t.Attempts >= s.opts.MaxAttempts {
		log.Error().Err(herr).Msg("sync task failed")
		if err := s.repo.Fail(bctx, t.ID, herr.Error()); err != nil {
			return true, fmt.Errorf("failed to mark sync task failed: %w", err)
		}
		return true, nil
	}

	runAfter := s.now().Add(s.Backoff(t.Attempts))
	log.Warn().Err(herr).Time("run_after", runAfter).Msg("sync task will be retried")
	if err := s.repo.Retry(bctx, t.ID, herr.Error(), runAfter); err != nil {
		return true, fmt.Errorf("failed to reschedule sync task: %w", err)
	}
	return true, nil
}

// Drain processes ready tasks until none is left or ctx is done. It returns
// the number of tasks processed.
func (s *Service) Drain(ctx context.Context, h Handler) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := s.ProcessNext(ctx, h)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// RecoverStale requeues tasks a previous process left running.
func (s *Service) RecoverStale(ctx context.Context) (int, error) {
	n, err := s.repo.RequeueStale(ctx, s.opts.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale sync tasks: %w", err)
	}
	if n > 0 {
		logger.FromContext(ctx).Info().Int("count", n).Msg("requeued stale sync tasks")
	}
	return n, nil
}

// Backoff is the delay before retrying a task after its attempt-th failure.
func (s *Service) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return s.opts.BaseBackoff << (attempt - 1)
}
