package http

import (
	"context"
	"net/http"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/transaction"
	"finsync/internal/domain/webhook"
	"finsync/internal/shared/middleware"
)

func withUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
}

// MockTransactionRepo implements transaction.Repository for testing
type MockTransactionRepo struct {
	GetByIDFunc func(ctx context.Context, id string, userID int64) (*transaction.Transaction, error)
	ListFunc    func(ctx context.Context, q transaction.Query) ([]*transaction.Transaction, int, error)
}

func (m *MockTransactionRepo) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	return false, nil
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, id string, userID int64) (*transaction.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, userID)
	}
	return nil, transaction.ErrTransactionNotFound
}

func (m *MockTransactionRepo) List(ctx context.Context, q transaction.Query) ([]*transaction.Transaction, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, q)
	}
	return nil, 0, nil
}

// MockPaymentMethodRepo implements paymentmethod.Repository for testing
type MockPaymentMethodRepo struct {
	ListActiveByUserIDFunc func(ctx context.Context, userID int64) ([]*paymentmethod.PaymentMethod, error)
	GetByIDFunc            func(ctx context.Context, id string, userID int64) (*paymentmethod.PaymentMethod, error)
	DeactivateFunc         func(ctx context.Context, id string, userID int64) error
}

func (m *MockPaymentMethodRepo) Upsert(ctx context.Context, params paymentmethod.UpsertParams) (*paymentmethod.PaymentMethod, error) {
	return nil, nil
}

func (m *MockPaymentMethodRepo) ListActiveByItemID(ctx context.Context, itemID string) ([]*paymentmethod.PaymentMethod, error) {
	return nil, nil
}

func (m *MockPaymentMethodRepo) ListActiveByUserID(ctx context.Context, userID int64) ([]*paymentmethod.PaymentMethod, error) {
	if m.ListActiveByUserIDFunc != nil {
		return m.ListActiveByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockPaymentMethodRepo) GetByID(ctx context.Context, id string, userID int64) (*paymentmethod.PaymentMethod, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, userID)
	}
	return nil, paymentmethod.ErrPaymentMethodNotFound
}

func (m *MockPaymentMethodRepo) Deactivate(ctx context.Context, id string, userID int64) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id, userID)
	}
	return nil
}

type MockSyncer struct {
	SyncItemFunc func(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error)
}

func (m *MockSyncer) SyncItem(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error) {
	return m.SyncItemFunc(ctx, req)
}

type MockDispatcher struct {
	payloads     []webhook.Payload
	DispatchFunc func(ctx context.Context, p webhook.Payload) error
}

func (m *MockDispatcher) Dispatch(ctx context.Context, p webhook.Payload) error {
	m.payloads = append(m.payloads, p)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, p)
	}
	return nil
}

type MockVerifier struct {
	token string
	body  []byte
	err   error
}

func (m *MockVerifier) Verify(ctx context.Context, token string, body []byte) error {
	m.token, m.body = token, body
	return m.err
}
