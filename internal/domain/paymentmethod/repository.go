package paymentmethod

import "context"

// Repository defines payment method data access. Implemented in the
// infrastructure layer.
type Repository interface {
	// Upsert creates or updates by external account id. It never reactivates
	// a row the user deactivated.
	Upsert(ctx context.Context, params UpsertParams) (*PaymentMethod, error)

	// ListActiveByItemID returns active payment methods for an item (internal id).
	ListActiveByItemID(ctx context.Context, itemID string) ([]*PaymentMethod, error)

	ListActiveByUserID(ctx context.Context, userID int64) ([]*PaymentMethod, error)

	// GetByID returns an active payment method owned by userID.
	GetByID(ctx context.Context, id string, userID int64) (*PaymentMethod, error)

	// Deactivate soft-deletes a payment method owned by userID.
	Deactivate(ctx context.Context, id string, userID int64) error
}
