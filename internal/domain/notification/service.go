package notification

import (
	"context"
	"strconv"

	"finsync/internal/shared/logger"
	"finsync/internal/shared/messages"
)

// Service registers push targets and sends sync related notifications.
// Sending is best effort: delivery problems are logged, never returned.
type Service struct {
	repo      Repository
	messenger Messenger
	texts     *messages.Messages
}

// NewService creates a notification service. messenger may be nil, in which
// case nothing is sent.
func NewService(repo Repository, messenger Messenger, texts *messages.Messages) *Service {
	if texts == nil {
		texts = messages.Default()
	}
	return &Service{repo: repo, messenger: messenger, texts: texts}
}

// SetMessenger installs the push transport after construction. The FCM client
// needs DeactivateToken as its callback, so it is built after the service.
func (s *Service) SetMessenger(m Messenger) {
	s.messenger = m
}

// RegisterDevice registers a device token for the authenticated user.
// If the token already belongs to another user, it is reassigned.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDeviceToken(ctx, params)
}

func (s *Service) DeactivateToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	return s.repo.DeactivateToken(ctx, token)
}

// NotifySyncComplete tells the user that count new transactions arrived.
func (s *Service) NotifySyncComplete(ctx context.Context, userID int64, itemID, institution string, count int) error {
	text := s.texts.SyncComplete.Render(map[string]string{
		"count":       strconv.Itoa(count),
		"institution": institution,
	})
	return s.sendToUser(ctx, userID, text, map[string]string{
		"route":  RouteTransactions,
		"itemId": itemID,
	})
}

// NotifyNeedsAttention tells the user that an item stopped syncing.
func (s *Service) NotifyNeedsAttention(ctx context.Context, userID int64, itemID, institution string) error {
	text := s.texts.ItemNeedsAttention.Render(map[string]string{
		"institution": institution,
	})
	return s.sendToUser(ctx, userID, text, map[string]string{
		"route":  RouteAccounts,
		"itemId": itemID,
	})
}

func (s *Service) sendToUser(ctx context.Context, userID int64, text messages.MessageText, data map[string]string) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	log := logger.FromContext(ctx)

	if s.messenger == nil {
		log.Debug().Int64("user_id", userID).Str("title", text.Title).Msg("push disabled, notification dropped")
		return nil
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		log.Debug().Int64("user_id", userID).Msg("no active device tokens")
		return nil
	}

	targets := make([]string, len(tokens))
	for i, t := range tokens {
		targets[i] = t.Token
	}

	if err := s.messenger.SendMulticast(ctx, targets, text.Title, text.Body, data); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to send push notification")
	}
	return nil
}
