package item

import (
	"context"
	"time"
)

// Repository is implemented in the infrastructure layer. Access tokens are
// returned decrypted.
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (*Item, error)
	GetByExternalID(ctx context.Context, externalID string) (*Item, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Item, error)
	// ListSyncable returns items without a recorded error.
	ListSyncable(ctx context.Context) ([]*Item, error)
	MarkSynced(ctx context.Context, externalID string, at time.Time) error
	RecordError(ctx context.Context, externalID string, syncErr SyncError) error
}
