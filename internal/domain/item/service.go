package item

import (
	"context"
	"time"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Upsert(ctx context.Context, params UpsertParams) (*Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, params)
}

// GetForUser loads an item by external id. A non-zero userID must own the
// item; otherwise the item is reported as not found.
func (s *Service) GetForUser(ctx context.Context, externalID string, userID int64) (*Item, error) {
	if externalID == "" {
		return nil, ErrInvalidItemID
	}
	it, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && it.UserID != userID {
		return nil, ErrItemNotFound
	}
	return it, nil
}

func (s *Service) ListByUserID(ctx context.Context, userID int64) ([]*Item, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListByUserID(ctx, userID)
}

func (s *Service) ListSyncable(ctx context.Context) ([]*Item, error) {
	return s.repo.ListSyncable(ctx)
}

// MarkSynced advances the checkpoint and clears any recorded error.
func (s *Service) MarkSynced(ctx context.Context, externalID string, at time.Time) error {
	return s.repo.MarkSynced(ctx, externalID, at)
}

func (s *Service) RecordError(ctx context.Context, externalID string, syncErr SyncError) error {
	if syncErr.Code == "" {
		syncErr.Code = "SYNC_ERROR"
	}
	return s.repo.RecordError(ctx, externalID, syncErr)
}
