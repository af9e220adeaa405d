package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/synctask"
)

type MockTaskQueue struct {
	drains    atomic.Int32
	recovered atomic.Int32
	DrainFunc func(ctx context.Context, h synctask.Handler) (int, error)
}

func (q *MockTaskQueue) Drain(ctx context.Context, h synctask.Handler) (int, error) {
	q.drains.Add(1)
	if q.DrainFunc != nil {
		return q.DrainFunc(ctx, h)
	}
	return 0, nil
}

func (q *MockTaskQueue) RecoverStale(ctx context.Context) (int, error) {
	q.recovered.Add(1)
	return 0, nil
}

type upstreamErr struct{ code string }

func (e *upstreamErr) Error() string     { return "plaid: " + e.code }
func (e *upstreamErr) ErrorCode() string { return e.code }

func TestTaskWorker_Handle(t *testing.T) {
	tests := []struct {
		name          string
		syncErr       error
		wantErr       bool
		wantPermanent bool
	}{
		{name: "success"},
		{name: "item gone", syncErr: item.ErrItemNotFound, wantErr: true, wantPermanent: true},
		{name: "relink needed", syncErr: fmt.Errorf("%w: %w", banksync.ErrSyncFailed, &upstreamErr{code: "ITEM_LOGIN_REQUIRED"}), wantErr: true, wantPermanent: true},
		{name: "transient upstream", syncErr: fmt.Errorf("%w: %w", banksync.ErrSyncFailed, &upstreamErr{code: "INTERNAL_SERVER_ERROR"}), wantErr: true},
		{name: "lock failure", syncErr: errors.New("failed to acquire item lock"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &MockSyncer{
				SyncItemFunc: func(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error) {
					if tt.syncErr != nil {
						return nil, tt.syncErr
					}
					return &banksync.SyncResult{Synced: 1}, nil
				},
			}
			w := NewTaskWorker(zerolog.Nop(), &MockTaskQueue{}, syncer, time.Minute)

			err := w.Handle(context.Background(), &synctask.Task{ID: "t1", ItemID: "item-1"})
			assert.Equal(t, []string{"item-1"}, syncer.itemIDs())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.syncErr)
			assert.Equal(t, tt.wantPermanent, synctask.IsPermanent(err))
		})
	}
}

func TestTaskWorker_WakeDrains(t *testing.T) {
	queue := &MockTaskQueue{}
	w := NewTaskWorker(zerolog.Nop(), queue, &MockSyncer{}, time.Hour)

	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return queue.drains.Load() == 1 }, time.Second, 5*time.Millisecond, "drains on start")
	assert.Equal(t, int32(1), queue.recovered.Load())

	w.Wake("item-1")
	require.Eventually(t, func() bool { return queue.drains.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTaskWorker_WakeNeverBlocks(t *testing.T) {
	w := NewTaskWorker(zerolog.Nop(), &MockTaskQueue{}, &MockSyncer{}, time.Hour)
	for i := 0; i < 5; i++ {
		w.Wake("")
	}
	assert.Len(t, w.wake, 1)
	w.Stop()
}

func TestTaskWorker_PollDrains(t *testing.T) {
	queue := &MockTaskQueue{}
	w := NewTaskWorker(zerolog.Nop(), queue, &MockSyncer{}, 10*time.Millisecond)

	w.Start(context.Background())
	require.Eventually(t, func() bool { return queue.drains.Load() >= 3 }, time.Second, 5*time.Millisecond)
	w.Stop()
}
