package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"finsync/internal/domain/transaction"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionSelect = `
	SELECT t.id, COALESCE(t.external_id, ''), t.user_id, COALESCE(t.payment_method_id::text, ''),
	       COALESCE(t.merchant_id::text, ''), t.source, t.amount, t.currency, t.date,
	       t.authorized_date, t.posted_date, t.merchant_name, t.category, t.category_detailed,
	       t.location, t.notes, t.created_at, t.updated_at,
	       pm.id, pm.name, pm.type, pm.subtype, pm.mask, pm.institution_name,
	       m.name,
	       c.shop_name, c.submitted_at
	FROM transactions t
	LEFT JOIN payment_methods pm ON pm.id = t.payment_method_id
	LEFT JOIN merchants m ON m.id = t.merchant_id
	LEFT JOIN cash_transactions c ON c.transaction_id = t.id`

// Create returns transaction.ErrDuplicateExternalID when another writer
// already stored the external id.
func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}
	var location any
	if len(params.Location) > 0 {
		location = []byte(params.Location)
	}

	query := `
		INSERT INTO transactions (
			external_id, user_id, payment_method_id, merchant_id, source, amount, currency,
			date, authorized_date, posted_date, merchant_name, category, category_detailed, location
		)
		VALUES (NULLIF($1, ''), $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7,
		        $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14)
		RETURNING id, created_at, updated_at`

	tx := transaction.Transaction{
		ExternalID:       params.ExternalID,
		UserID:           params.UserID,
		PaymentMethodID:  params.PaymentMethodID,
		MerchantID:       params.MerchantID,
		Source:           params.Source,
		Amount:           params.Amount,
		Currency:         currency,
		Date:             params.Date,
		AuthorizedDate:   params.AuthorizedDate,
		PostedDate:       params.PostedDate,
		MerchantName:     params.MerchantName,
		Category:         params.Category,
		CategoryDetailed: params.CategoryDetailed,
		Location:         params.Location,
	}

	err := r.db.QueryRowContext(ctx, query,
		params.ExternalID, params.UserID, params.PaymentMethodID, params.MerchantID, params.Source,
		params.Amount, currency, params.Date, params.AuthorizedDate, params.PostedDate,
		params.MerchantName, params.Category, params.CategoryDetailed, location,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, transaction.ErrDuplicateExternalID
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &tx, nil
}

func (r *TransactionRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE external_id = $1)`, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string, userID int64) (*transaction.Transaction, error) {
	query := transactionSelect + ` WHERE t.id = $1 AND t.user_id = $2`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// List matches Text with a case-insensitive contains on the stored merchant
// name and category.
func (r *TransactionRepository) List(ctx context.Context, q transaction.Query) ([]*transaction.Transaction, int, error) {
	where := ` WHERE t.user_id = $1`
	args := []any{q.UserID}
	if text := strings.TrimSpace(q.Text); text != "" {
		args = append(args, "%"+escapeLike(text)+"%")
		where += ` AND (t.merchant_name ILIKE $2 OR t.category ILIKE $2)`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := transactionSelect + where + ` ORDER BY t.date DESC, t.created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, total, nil
}

func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var (
		tx                 transaction.Transaction
		authorized, posted sql.NullTime
		category, detailed sql.NullString
		notes              sql.NullString
		location           []byte
		pm                 [6]sql.NullString
		merchantName       sql.NullString
		shopName           sql.NullString
		submittedAt        sql.NullTime
	)
	err := s.Scan(
		&tx.ID, &tx.ExternalID, &tx.UserID, &tx.PaymentMethodID,
		&tx.MerchantID, &tx.Source, &tx.Amount, &tx.Currency, &tx.Date,
		&authorized, &posted, &tx.MerchantName, &category, &detailed,
		&location, &notes, &tx.CreatedAt, &tx.UpdatedAt,
		&pm[0], &pm[1], &pm[2], &pm[3], &pm[4], &pm[5],
		&merchantName,
		&shopName, &submittedAt,
	)
	if err != nil {
		return nil, err
	}

	if authorized.Valid {
		t := authorized.Time
		tx.AuthorizedDate = &t
	}
	if posted.Valid {
		t := posted.Time
		tx.PostedDate = &t
	}
	tx.Category = category.String
	tx.CategoryDetailed = detailed.String
	tx.Notes = notes.String
	if len(location) > 0 {
		tx.Location = location
	}
	if pm[0].Valid {
		tx.PaymentMethod = &transaction.PaymentMethodRef{
			ID:              pm[0].String,
			Name:            pm[1].String,
			Type:            pm[2].String,
			Subtype:         pm[3].String,
			Mask:            pm[4].String,
			InstitutionName: pm[5].String,
		}
	}
	tx.MerchantEntityName = merchantName.String
	if submittedAt.Valid {
		tx.Cash = &transaction.CashRecord{ShopName: shopName.String, SubmittedAt: submittedAt.Time}
	}
	return &tx, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
