package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsync/internal/domain/synctask"
)

// SyncTaskChannel is the NOTIFY channel carrying the item id of each new task.
const SyncTaskChannel = "sync_tasks"

type SyncTaskRepository struct {
	db *DB
}

func NewSyncTaskRepository(db *DB) *SyncTaskRepository {
	return &SyncTaskRepository{db: db}
}

const syncTaskColumns = `id, item_id, reason, status, attempts, COALESCE(last_error, ''), run_after, created_at, updated_at`

// Enqueue inserts the task and notifies listeners in one transaction, so a
// listener never wakes up before the row is visible.
func (r *SyncTaskRepository) Enqueue(ctx context.Context, itemID, reason string) (*synctask.Task, bool, error) {
	var (
		task    *synctask.Task
		created bool
	)

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		task, created, err = insertOrFind(
			func() (*synctask.Task, error) {
				return scanSyncTask(tx.QueryRowContext(ctx, `
					INSERT INTO sync_tasks (id, item_id, reason)
					VALUES ($1, $2, $3)
					ON CONFLICT (item_id) WHERE status = 'pending' DO NOTHING
					RETURNING `+syncTaskColumns,
					uuid.NewString(), itemID, reason,
				))
			},
			func() (*synctask.Task, error) {
				return scanSyncTask(tx.QueryRowContext(ctx, `
					SELECT `+syncTaskColumns+` FROM sync_tasks
					WHERE item_id = $1 AND status = 'pending'
				`, itemID))
			},
		)
		if err != nil || !created {
			return err
		}

		_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, SyncTaskChannel, itemID)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue sync task: %w", err)
	}
	return task, created, nil
}

// insertOrFind inserts a task, or finds the pending one the insert conflicted
// with. A worker can claim that row between the two statements; the insert is
// then retried once, since nothing pending blocks it any more.
func insertOrFind(insert, find func() (*synctask.Task, error)) (*synctask.Task, bool, error) {
	for attempt := 0; ; attempt++ {
		task, err := insert()
		if err == nil {
			return task, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}

		task, err = find()
		if errors.Is(err, sql.ErrNoRows) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return task, false, nil
	}
}

func (r *SyncTaskRepository) ClaimNext(ctx context.Context) (*synctask.Task, error) {
	query := `
		WITH next AS (
			SELECT id FROM sync_tasks
			WHERE status = 'pending' AND run_after <= NOW()
			ORDER BY run_after, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE sync_tasks t
		SET status = 'running', attempts = t.attempts + 1, updated_at = NOW()
		FROM next
		WHERE t.id = next.id
		RETURNING t.id, t.item_id, t.reason, t.status, t.attempts, COALESCE(t.last_error, ''),
		          t.run_after, t.created_at, t.updated_at`

	task, err := scanSyncTask(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, synctask.ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim sync task: %w", err)
	}
	return task, nil
}

func (r *SyncTaskRepository) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_tasks SET status = 'done', last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to complete sync task: %w", err)
	}
	return expectOne(res, synctask.ErrTaskNotFound)
}

// Retry puts the task back to pending. When a newer pending task for the
// same item already exists the retry is folded into it.
func (r *SyncTaskRepository) Retry(ctx context.Context, id, lastError string, runAfter time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_tasks SET status = 'pending', last_error = $2, run_after = $3, updated_at = NOW()
		WHERE id = $1
	`, id, lastError, runAfter)
	if isUniqueViolation(err) {
		res, err = r.db.ExecContext(ctx, `
			UPDATE sync_tasks SET status = 'done', last_error = $2, updated_at = NOW()
			WHERE id = $1
		`, id, "superseded: "+lastError)
	}
	if err != nil {
		return fmt.Errorf("failed to retry sync task: %w", err)
	}
	return expectOne(res, synctask.ErrTaskNotFound)
}

func (r *SyncTaskRepository) Fail(ctx context.Context, id, lastError string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_tasks SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("failed to fail sync task: %w", err)
	}
	return expectOne(res, synctask.ErrTaskNotFound)
}

func (r *SyncTaskRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	var requeued int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Stale tasks whose item already has a pending task are closed.
		if _, err := tx.ExecContext(ctx, `
			UPDATE sync_tasks s SET status = 'done', last_error = 'superseded', updated_at = NOW()
			WHERE s.status = 'running'
			  AND s.updated_at < NOW() - make_interval(secs => $1)
			  AND EXISTS (SELECT 1 FROM sync_tasks p WHERE p.item_id = s.item_id AND p.status = 'pending')
		`, olderThan.Seconds()); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE sync_tasks SET status = 'pending', run_after = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT DISTINCT ON (item_id) id FROM sync_tasks
				WHERE status = 'running' AND updated_at < NOW() - make_interval(secs => $1)
				ORDER BY item_id, created_at DESC
			)
		`, olderThan.Seconds())
		if err != nil {
			return err
		}
		requeued, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale sync tasks: %w", err)
	}
	return int(requeued), nil
}

func scanSyncTask(s scanner) (*synctask.Task, error) {
	var t synctask.Task
	err := s.Scan(
		&t.ID, &t.ItemID, &t.Reason, &t.Status, &t.Attempts, &t.LastError,
		&t.RunAfter, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
