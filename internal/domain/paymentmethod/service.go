package paymentmethod

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Upsert(ctx context.Context, params UpsertParams) (*PaymentMethod, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, params)
}

func (s *Service) ListActiveByItemID(ctx context.Context, itemID string) ([]*PaymentMethod, error) {
	return s.repo.ListActiveByItemID(ctx, itemID)
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Summary, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	pms, err := s.repo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(pms))
	for _, pm := range pms {
		out = append(out, pm.Summary())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string, userID int64) (*Detail, error) {
	if id == "" {
		return nil, ErrPaymentMethodNotFound
	}
	pm, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	d := pm.Detail()
	return &d, nil
}

func (s *Service) Deactivate(ctx context.Context, id string, userID int64) error {
	if id == "" {
		return ErrPaymentMethodNotFound
	}
	return s.repo.Deactivate(ctx, id, userID)
}
