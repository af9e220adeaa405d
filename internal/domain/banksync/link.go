package banksync

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"finsync/internal/domain/item"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/synctask"
	"finsync/internal/shared/logger"
)

// ItemInfo is the aggregator's view of a linked item.
type ItemInfo struct {
	ExternalID    string
	InstitutionID string
}

// Linker is the credential side of the aggregator.
type Linker interface {
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	GetItem(ctx context.Context, accessToken string) (*ItemInfo, error)
	GetInstitutionName(ctx context.Context, institutionID string) (string, error)
}

// TaskQueue schedules a durable sync of an item.
type TaskQueue interface {
	Enqueue(ctx context.Context, itemID, reason string) error
}

// LinkResult is returned after a successful credential exchange.
type LinkResult struct {
	Success         bool   `json:"success"`
	ItemID          string `json:"itemId"`
	InstitutionName string `json:"institutionName"`
	Accounts        int    `json:"accounts"`
}

// LinkService connects new items.
type LinkService struct {
	items   *item.Service
	methods *paymentmethod.Service
	linker  Linker
	feed    Feed
	queue   TaskQueue
}

func NewLinkService(items *item.Service, methods *paymentmethod.Service, linker Linker, feed Feed, queue TaskQueue) *LinkService {
	return &LinkService{
		items:   items,
		methods: methods,
		linker:  linker,
		feed:    feed,
		queue:   queue,
	}
}

func (s *LinkService) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", item.ErrInvalidUserID
	}
	token, err := s.linker.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to create link token: %w", err)
	}
	return token, nil
}

// Exchange trades a public token for an access token, stores the item and its
// accounts, and queues the first sync. The item starts without a checkpoint,
// so the first sync covers the default lookback window.
func (s *LinkService) Exchange(ctx context.Context, userID int64, publicToken string) (*LinkResult, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, ErrPublicTokenRequired
	}
	if userID <= 0 {
		return nil, item.ErrInvalidUserID
	}
	log := logger.FromContext(ctx)

	accessToken, externalID, err := s.linker.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}

	var (
		institutionID   string
		institutionName = unknownInstitutionName
		accounts        []Account
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := s.linker.GetItem(gctx, accessToken)
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}
		institutionID = info.InstitutionID
		if institutionID == "" {
			return nil
		}
		name, err := s.linker.GetInstitutionName(gctx, institutionID)
		if err != nil {
			log.Warn().Err(err).Str("institution_id", institutionID).Msg("failed to fetch institution, using fallback name")
			return nil
		}
		if name != "" {
			institutionName = name
		}
		return nil
	})
	g.Go(func() error {
		var err error
		accounts, err = s.feed.GetAccounts(gctx, accessToken)
		if err != nil {
			return fmt.Errorf("failed to fetch accounts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}

	it, err := s.items.Upsert(ctx, item.UpsertParams{
		ExternalID:      externalID,
		UserID:          userID,
		AccessToken:     accessToken,
		InstitutionID:   institutionID,
		InstitutionName: institutionName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}

	// Relinking restores accounts the user had removed.
	if err := upsertAccounts(ctx, s.methods, it, accounts, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, it.ExternalID, synctask.ReasonLink); err != nil {
			log.Error().Err(err).Str("item_id", it.ExternalID).Msg("failed to queue initial sync")
		}
	}

	log.Info().
		Str("item_id", it.ExternalID).
		Str("institution", institutionName).
		Int("accounts", len(accounts)).
		Msg("item linked")

	return &LinkResult{
		Success:         true,
		ItemID:          it.ExternalID,
		InstitutionName: institutionName,
		Accounts:        len(accounts),
	}, nil
}
