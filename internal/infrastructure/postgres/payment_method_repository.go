package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finsync/internal/domain/paymentmethod"
)

type PaymentMethodRepository struct {
	db *DB
}

func NewPaymentMethodRepository(db *DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

const paymentMethodColumns = `pm.id, COALESCE(pm.external_account_id, ''), COALESCE(pm.item_id::text, ''),
	COALESCE(i.external_id, ''), pm.user_id, pm.name, pm.type, COALESCE(pm.subtype, ''),
	COALESCE(pm.mask, ''), COALESCE(pm.official_name, ''), COALESCE(pm.institution_name, ''),
	pm.is_active, pm.created_at, pm.updated_at`

// Upsert leaves is_active alone on conflict unless params.Reactivate is set,
// so a deactivated account stays deactivated across syncs.
func (r *PaymentMethodRepository) Upsert(ctx context.Context, params paymentmethod.UpsertParams) (*paymentmethod.PaymentMethod, error) {
	query := `
		WITH pm AS (
			INSERT INTO payment_methods (external_account_id, item_id, user_id, name, type, subtype, mask, official_name, institution_name)
			VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''))
			ON CONFLICT (external_account_id) DO UPDATE SET
				item_id          = EXCLUDED.item_id,
				user_id          = EXCLUDED.user_id,
				name             = EXCLUDED.name,
				type             = EXCLUDED.type,
				subtype          = EXCLUDED.subtype,
				mask             = EXCLUDED.mask,
				official_name    = EXCLUDED.official_name,
				institution_name = EXCLUDED.institution_name,
				is_active        = payment_methods.is_active OR $10::boolean,
				updated_at       = NOW()
			RETURNING *
		)
		SELECT ` + paymentMethodColumns + `
		FROM pm
		LEFT JOIN items i ON i.id = pm.item_id`

	pm, err := scanPaymentMethod(r.db.QueryRowContext(ctx, query,
		params.ExternalAccountID, params.ItemID, params.UserID, params.Name, params.Type,
		params.Subtype, params.Mask, params.OfficialName, params.InstitutionName, params.Reactivate,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert payment method: %w", err)
	}
	return pm, nil
}

func (r *PaymentMethodRepository) ListActiveByItemID(ctx context.Context, itemID string) ([]*paymentmethod.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods pm
		LEFT JOIN items i ON i.id = pm.item_id
		WHERE pm.item_id = $1 AND pm.is_active
		ORDER BY pm.created_at`
	return r.list(ctx, query, itemID)
}

func (r *PaymentMethodRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*paymentmethod.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods pm
		LEFT JOIN items i ON i.id = pm.item_id
		WHERE pm.user_id = $1 AND pm.is_active
		ORDER BY pm.institution_name NULLS LAST, pm.name`
	return r.list(ctx, query, userID)
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, id string, userID int64) (*paymentmethod.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods pm
		LEFT JOIN items i ON i.id = pm.item_id
		WHERE pm.id = $1 AND pm.user_id = $2 AND pm.is_active`

	pm, err := scanPaymentMethod(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, paymentmethod.ErrPaymentMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return pm, nil
}

func (r *PaymentMethodRepository) Deactivate(ctx context.Context, id string, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_methods SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active
	`, id, userID)
	if isInvalidText(err) {
		return paymentmethod.ErrPaymentMethodNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate payment method: %w", err)
	}
	return expectOne(res, paymentmethod.ErrPaymentMethodNotFound)
}

func (r *PaymentMethodRepository) list(ctx context.Context, query string, args ...any) ([]*paymentmethod.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*paymentmethod.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", err)
	}
	return methods, nil
}

func scanPaymentMethod(s scanner) (*paymentmethod.PaymentMethod, error) {
	var pm paymentmethod.PaymentMethod
	err := s.Scan(
		&pm.ID, &pm.ExternalAccountID, &pm.ItemID, &pm.ExternalItemID, &pm.UserID,
		&pm.Name, &pm.Type, &pm.Subtype, &pm.Mask, &pm.OfficialName, &pm.InstitutionName,
		&pm.IsActive, &pm.CreatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}
