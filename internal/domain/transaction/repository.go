package transaction

import "context"

// Repository defines transaction data access. Implemented in the
// infrastructure layer.
type Repository interface {
	// Create inserts a transaction. It returns ErrDuplicateExternalID when the
	// external id is already stored.
	Create(ctx context.Context, params CreateParams) (*Transaction, error)

	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)

	// GetByID returns a transaction owned by userID with its payment method,
	// merchant and cash record joined.
	GetByID(ctx context.Context, id string, userID int64) (*Transaction, error)

	// List returns one page of a user's transactions, most recent first, and
	// the total number of rows matching the query.
	List(ctx context.Context, q Query) ([]*Transaction, int, error)
}
