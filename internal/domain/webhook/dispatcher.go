package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finsync/internal/domain/item"
	"finsync/internal/domain/synctask"
	"finsync/internal/shared/logger"
)

// TaskQueue schedules a durable sync of an item.
type TaskQueue interface {
	Enqueue(ctx context.Context, itemID, reason string) error
}

// Notifier tells a user that an item needs attention.
type Notifier interface {
	NotifyNeedsAttention(ctx context.Context, userID int64, itemID, institution string) error
}

// Dispatcher routes webhooks. It never syncs inline: transaction webhooks
// become queued tasks so the sender gets its answer right away.
type Dispatcher struct {
	queue    TaskQueue
	items    *item.Service
	notifier Notifier
}

func NewDispatcher(queue TaskQueue, items *item.Service, notifier Notifier) *Dispatcher {
	return &Dispatcher{queue: queue, items: items, notifier: notifier}
}

func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	log := logger.FromContext(ctx).With().
		Str("webhook_type", p.WebhookType).
		Str("webhook_code", p.WebhookCode).
		Str("item_id", p.ItemID).
		Logger()

	switch strings.ToUpper(p.WebhookType) {
	case TypeTransactions:
		if strings.TrimSpace(p.ItemID) == "" {
			return ErrItemIDRequired
		}
		if err := d.queue.Enqueue(ctx, p.ItemID, synctask.ReasonWebhook); err != nil {
			return fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
		}
		log.Info().Msg("transactions webhook queued")
		return nil

	case TypeItem:
		if p.Error == nil || p.ItemID == "" {
			log.Debug().Msg("item webhook without error acknowledged")
			return nil
		}
		return d.recordItemError(logger.WithContext(ctx, log), p)
	}

	log.Debug().Msg("webhook acknowledged")
	return nil
}

func (d *Dispatcher) recordItemError(ctx context.Context, p Payload) error {
	log := logger.FromContext(ctx)

	it, err := d.items.GetForUser(ctx, p.ItemID, 0)
	if errors.Is(err, item.ErrItemNotFound) {
		log.Warn().Msg("item webhook for unknown item")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}

	msg := p.Error.ErrorMessage
	if msg == "" {
		msg = p.Error.DisplayMessage
	}
	if err := d.items.RecordError(ctx, it.ExternalID, item.SyncError{Message: msg, Code: p.Error.ErrorCode}); err != nil {
		return fmt.Errorf("failed to record item error: %w", err)
	}
	log.Warn().Str("code", p.Error.ErrorCode).Msg("item error recorded")

	if d.notifier != nil {
		if err := d.notifier.NotifyNeedsAttention(ctx, it.UserID, it.ExternalID, it.InstitutionName); err != nil {
			log.Warn().Err(err).Msg("failed to send needs-attention notification")
		}
	}
	return nil
}
