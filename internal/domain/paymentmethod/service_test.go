package paymentmethod

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	UpsertFunc             func(ctx context.Context, params UpsertParams) (*PaymentMethod, error)
	ListActiveByItemIDFunc func(ctx context.Context, itemID string) ([]*PaymentMethod, error)
	ListActiveByUserIDFunc func(ctx context.Context, userID int64) ([]*PaymentMethod, error)
	GetByIDFunc            func(ctx context.Context, id string, userID int64) (*PaymentMethod, error)
	DeactivateFunc         func(ctx context.Context, id string, userID int64) error
}

func (m *MockRepository) Upsert(ctx context.Context, params UpsertParams) (*PaymentMethod, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockRepository) ListActiveByItemID(ctx context.Context, itemID string) ([]*PaymentMethod, error) {
	if m.ListActiveByItemIDFunc != nil {
		return m.ListActiveByItemIDFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*PaymentMethod, error) {
	if m.ListActiveByUserIDFunc != nil {
		return m.ListActiveByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string, userID int64) (*PaymentMethod, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, userID)
	}
	return nil, ErrPaymentMethodNotFound
}

func (m *MockRepository) Deactivate(ctx context.Context, id string, userID int64) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id, userID)
	}
	return nil
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name        string
		pm          PaymentMethod
		wantType    string
		wantDetails string
		wantItem    *string
	}{
		{
			name:        "checking with mask",
			pm:          PaymentMethod{Name: "Plaid Checking", Type: TypeDepository, Mask: "0000", ExternalItemID: "item-1"},
			wantType:    "Bank Account",
			wantDetails: "Plaid Checking xxxx 0000",
			wantItem:    strPtr("item-1"),
		},
		{
			name:        "credit without mask",
			pm:          PaymentMethod{Name: "Plaid Credit Card", Type: TypeCredit},
			wantType:    "Credit Card",
			wantDetails: "Plaid Credit Card",
		},
		{
			name:        "loan is shown as card",
			pm:          PaymentMethod{Name: "Student Loan", Type: TypeLoan, Mask: "1234"},
			wantType:    "Credit Card",
			wantDetails: "Student Loan xxxx 1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.pm.Summary()
			assert.Equal(t, tt.wantType, s.Type)
			assert.Equal(t, tt.wantDetails, s.Details)
			assert.Equal(t, tt.wantItem, s.PlaidItemID)
		})
	}
}

func TestUpsert_RequiresExternalAccountID(t *testing.T) {
	svc := NewService(&MockRepository{})

	_, err := svc.Upsert(context.Background(), UpsertParams{UserID: 1})
	assert.ErrorIs(t, err, ErrInvalidAccountID)

	_, err = svc.Upsert(context.Background(), UpsertParams{ExternalAccountID: "acc-1"})
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestListForUser(t *testing.T) {
	svc := NewService(&MockRepository{
		ListActiveByUserIDFunc: func(ctx context.Context, userID int64) ([]*PaymentMethod, error) {
			assert.Equal(t, int64(3), userID)
			return []*PaymentMethod{
				{ID: "pm-1", Name: "Checking", Type: TypeDepository, Mask: "1111", InstitutionName: "Chase"},
			}, nil
		},
	})

	got, err := svc.ListForUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Checking xxxx 1111", got[0].Details)
	assert.Equal(t, "Chase", got[0].BankName)

	_, err = svc.ListForUser(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestDeactivate_OwnerScoped(t *testing.T) {
	svc := NewService(&MockRepository{
		DeactivateFunc: func(ctx context.Context, id string, userID int64) error {
			if userID != 1 {
				return ErrPaymentMethodNotFound
			}
			return nil
		},
	})

	assert.NoError(t, svc.Deactivate(context.Background(), "pm-1", 1))
	assert.ErrorIs(t, svc.Deactivate(context.Background(), "pm-1", 2), ErrPaymentMethodNotFound)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), "", 1), ErrPaymentMethodNotFound)
}

func strPtr(s string) *string { return &s }
