package scheduler

import (
	"context"
	"fmt"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/shared/logger"
)

// ItemSyncer runs a sync of one item.
type ItemSyncer interface {
	SyncItem(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error)
}

// ItemLister lists the items the sweep should visit.
type ItemLister interface {
	ListSyncable(ctx context.Context) ([]*item.Item, error)
}

// ItemSyncJob syncs a single item on the worker pool.
type ItemSyncJob struct {
	syncer ItemSyncer
	itemID string
}

func NewItemSyncJob(syncer ItemSyncer, itemID string) *ItemSyncJob {
	return &ItemSyncJob{syncer: syncer, itemID: itemID}
}

func (j *ItemSyncJob) Execute(ctx context.Context) error {
	res, err := j.syncer.SyncItem(ctx, banksync.SyncRequest{ExternalItemID: j.itemID})
	if err != nil {
		return err
	}
	if res.Incomplete {
		logger.FromContext(ctx).Warn().
			Str("item_id", j.itemID).
			Int("synced", res.Synced).
			Msg("sweep sync stopped early, remaining pages left for the next run")
	}
	return nil
}

func (j *ItemSyncJob) Key() string { return j.itemID }

func (j *ItemSyncJob) Description() string {
	return fmt.Sprintf("sync item %s", j.itemID)
}

// SweepProvider returns a JobProvider with one ItemSyncJob per syncable item.
// Items carrying an unresolved error are left out until relinked.
func SweepProvider(items ItemLister, syncer ItemSyncer) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		list, err := items.ListSyncable(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list syncable items: %w", err)
		}

		jobs := make([]Job, 0, len(list))
		for _, it := range list {
			jobs = append(jobs, NewItemSyncJob(syncer, it.ExternalID))
		}
		logger.FromContext(ctx).Info().Int("items", len(jobs)).Msg("sweep built")
		return jobs, nil
	}
}
