package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finsync/internal/domain/item"
)

// TokenCipher encrypts access tokens at rest.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type ItemRepository struct {
	db     *DB
	cipher TokenCipher
}

func NewItemRepository(db *DB, cipher TokenCipher) *ItemRepository {
	return &ItemRepository{db: db, cipher: cipher}
}

const itemColumns = `id, external_id, user_id, access_token, institution_id, institution_name,
	last_successful_update, error, created_at, updated_at`

func (r *ItemRepository) Upsert(ctx context.Context, params item.UpsertParams) (*item.Item, error) {
	token, err := r.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `
		INSERT INTO items (external_id, user_id, access_token, institution_id, institution_name)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (external_id) DO UPDATE SET
			user_id          = EXCLUDED.user_id,
			access_token     = EXCLUDED.access_token,
			institution_id   = EXCLUDED.institution_id,
			institution_name = EXCLUDED.institution_name,
			error            = NULL,
			updated_at       = NOW()
		RETURNING ` + itemColumns

	it, err := r.scan(r.db.QueryRowContext(ctx, query,
		params.ExternalID, params.UserID, token, params.InstitutionID, params.InstitutionName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) GetByExternalID(ctx context.Context, externalID string) (*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE external_id = $1`

	it, err := r.scan(r.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) ListByUserID(ctx context.Context, userID int64) ([]*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

func (r *ItemRepository) ListSyncable(ctx context.Context) ([]*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE error IS NULL ORDER BY last_successful_update NULLS FIRST`
	return r.list(ctx, query)
}

func (r *ItemRepository) MarkSynced(ctx context.Context, externalID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET last_successful_update = $2, error = NULL, updated_at = NOW()
		WHERE external_id = $1
	`, externalID, at)
	if err != nil {
		return fmt.Errorf("failed to mark item synced: %w", err)
	}
	return expectOne(res, item.ErrItemNotFound)
}

func (r *ItemRepository) RecordError(ctx context.Context, externalID string, syncErr item.SyncError) error {
	payload, err := json.Marshal(syncErr)
	if err != nil {
		return fmt.Errorf("failed to encode item error: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET error = $2, updated_at = NOW()
		WHERE external_id = $1
	`, externalID, payload)
	if err != nil {
		return fmt.Errorf("failed to record item error: %w", err)
	}
	return expectOne(res, item.ErrItemNotFound)
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*item.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *ItemRepository) scan(s scanner) (*item.Item, error) {
	var (
		it            item.Item
		token         string
		institutionID sql.NullString
		lastSynced    sql.NullTime
		errPayload    []byte
	)
	if err := s.Scan(
		&it.ID, &it.ExternalID, &it.UserID, &token, &institutionID, &it.InstitutionName,
		&lastSynced, &errPayload, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}

	plain, err := r.cipher.Decrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	it.AccessToken = plain
	it.InstitutionID = institutionID.String
	if lastSynced.Valid {
		t := lastSynced.Time
		it.LastSyncedAt = &t
	}
	if len(errPayload) > 0 {
		var syncErr item.SyncError
		if err := json.Unmarshal(errPayload, &syncErr); err == nil {
			it.Error = &syncErr
		} else {
			it.Error = &item.SyncError{Message: string(errPayload), Code: "SYNC_ERROR"}
		}
	}
	return &it, nil
}

// expectOne maps an update that touched no row to notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
