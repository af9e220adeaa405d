package merchant

import "context"

type Repository interface {
	// Upsert atomically finds or creates a merchant by name. A non-empty
	// category replaces the stored one.
	Upsert(ctx context.Context, name, category string) (*Merchant, error)

	// GetByName returns ErrMerchantNotFound when no merchant has that name.
	GetByName(ctx context.Context, name string) (*Merchant, error)
}
