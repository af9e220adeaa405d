package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finsync/internal/domain/merchant"
)

type MerchantRepository struct {
	db *DB
}

func NewMerchantRepository(db *DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// upsertMerchantQuery inserts a merchant or returns the existing row untouched.
// The no-op update makes RETURNING yield the row on conflict.
const upsertMerchantQuery = `
	INSERT INTO merchants (name, category)
	VALUES ($1, NULLIF($2, ''))
	ON CONFLICT (name) DO UPDATE SET name = merchants.name
	RETURNING id, name, COALESCE(category, ''), created_at, updated_at`

// Upsert is a single statement, so concurrent syncs resolving the same name
// get the same row. An existing merchant keeps its category.
func (r *MerchantRepository) Upsert(ctx context.Context, name, category string) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.QueryRowContext(ctx, upsertMerchantQuery, name, category).Scan(
		&m.ID, &m.Name, &m.Category, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert merchant: %w", err)
	}
	return &m, nil
}

func (r *MerchantRepository) GetByName(ctx context.Context, name string) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(category, ''), created_at, updated_at
		FROM merchants WHERE name = $1
	`, name).Scan(&m.ID, &m.Name, &m.Category, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, merchant.ErrMerchantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &m, nil
}
