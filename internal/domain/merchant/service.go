package merchant

import (
	"context"
	"errors"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindOrCreate returns the merchant named name, creating it if needed.
func (s *Service) FindOrCreate(ctx context.Context, name, category string) (*Merchant, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	return s.repo.Upsert(ctx, name, category)
}

// Lookup returns an existing merchant or nil when none matches.
func (s *Service) Lookup(ctx context.Context, name string) (*Merchant, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, nil
	}
	m, err := s.repo.GetByName(ctx, name)
	if errors.Is(err, ErrMerchantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
