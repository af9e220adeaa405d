package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/synctask"
	"finsync/internal/shared/logger"
)

func syncItemCmd() *cobra.Command {
	var (
		itemID string
		userID int64
	)

	cmd := &cobra.Command{
		Use:   "sync-item",
		Short: "Sync one item now",
		Long: `Sync one item inline and print the result. With --user-id the item
must belong to that user.

Examples:
  admin sync-item --item-id=eVBnVMp7zdTJLkRNr33Rs6zr7KNJqBFL9DrE6
  admin sync-item --item-id=eVBnVMp7zdTJLkRNr33Rs6zr7KNJqBFL9DrE6 --user-id=42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.sync.SyncItem(cmd.Context(), banksync.SyncRequest{ExternalItemID: itemID, UserID: userID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced=%d skipped=%d total=%d incomplete=%t\n",
				res.Synced, res.Skipped, res.Total, res.Incomplete)
			return nil
		},
	}

	cmd.Flags().StringVar(&itemID, "item-id", "", "external item id")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "require the item to belong to this user")
	_ = cmd.MarkFlagRequired("item-id")
	return cmd
}

func sweepCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sync every item without a recorded error",
		Long: `Sync every item that has no recorded error, several at a time.
Failures are recorded on their items and counted; the sweep carries on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.items.ListSyncable(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no items to sync")
				return nil
			}

			bar := progressbar.NewOptions(len(items),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Syncing items"),
			)

			stats := runSweep(ctx, a.sync, items, workers, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "\nitems=%d failed=%d synced=%d skipped=%d incomplete=%d\n",
				len(items), stats.failed.Load(), stats.synced.Load(), stats.skipped.Load(), stats.incomplete.Load())
			return ctx.Err()
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "items synced concurrently")
	return cmd
}

type sweepStats struct {
	synced     atomic.Int64
	skipped    atomic.Int64
	incomplete atomic.Int64
	failed     atomic.Int64
}

type itemSyncer interface {
	SyncItem(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error)
}

// runSweep syncs items with at most workers in flight. A failed item does not
// stop the others.
func runSweep(ctx context.Context, syncer itemSyncer, items []*item.Item, workers int, done func()) *sweepStats {
	if workers < 1 {
		workers = 1
	}
	log := logger.FromContext(ctx)
	stats := &sweepStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, it := range items {
		g.Go(func() error {
			defer done()
			res, err := syncer.SyncItem(gctx, banksync.SyncRequest{ExternalItemID: it.ExternalID})
			if err != nil {
				stats.failed.Add(1)
				log.Error().Err(err).Str("item_id", it.ExternalID).Msg("sweep item failed")
				return nil
			}
			stats.synced.Add(int64(res.Synced))
			stats.skipped.Add(int64(res.Skipped))
			if res.Incomplete {
				stats.incomplete.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats
}

func enqueueCmd() *cobra.Command {
	var itemID string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a background sync for an item",
		Long: `Queue a sync task for the API's task worker. A task already pending for
the item absorbs the request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.items.GetForUser(cmd.Context(), itemID, 0); err != nil {
				return err
			}
			if err := a.tasks.Enqueue(cmd.Context(), itemID, synctask.ReasonManual); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync queued for %s\n", itemID)
			return nil
		},
	}

	cmd.Flags().StringVar(&itemID, "item-id", "", "external item id")
	_ = cmd.MarkFlagRequired("item-id")
	return cmd
}
