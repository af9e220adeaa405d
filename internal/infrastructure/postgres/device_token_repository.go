package postgres

import (
	"context"
	"fmt"

	"finsync/internal/domain/notification"
)

type DeviceTokenRepository struct {
	db *DB
}

func NewDeviceTokenRepository(db *DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// UpsertDeviceToken reassigns a token that already belongs to another user.
func (r *DeviceTokenRepository) UpsertDeviceToken(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (token, user_id, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			user_id    = EXCLUDED.user_id,
			platform   = EXCLUDED.platform,
			is_active  = TRUE,
			updated_at = NOW()
		RETURNING token, user_id, platform, is_active, created_at, updated_at`

	var dt notification.DeviceToken
	err := r.db.QueryRowContext(ctx, query, params.Token, params.UserID, params.Platform).Scan(
		&dt.Token, &dt.UserID, &dt.Platform, &dt.IsActive, &dt.CreatedAt, &dt.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return &dt, nil
}

func (r *DeviceTokenRepository) GetActiveTokensByUserID(ctx context.Context, userID int64) ([]*notification.DeviceToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT token, user_id, platform, is_active, created_at, updated_at
		FROM device_tokens
		WHERE user_id = $1 AND is_active
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*notification.DeviceToken
	for rows.Next() {
		var dt notification.DeviceToken
		if err := rows.Scan(&dt.Token, &dt.UserID, &dt.Platform, &dt.IsActive, &dt.CreatedAt, &dt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, &dt)
	}
	return tokens, rows.Err()
}

func (r *DeviceTokenRepository) DeactivateToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE device_tokens SET is_active = FALSE, updated_at = NOW()
		WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return expectOne(res, notification.ErrDeviceTokenNotFound)
}
