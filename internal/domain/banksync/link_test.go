package banksync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/item"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/synctask"
)

type MockLinker struct {
	CreateLinkTokenFunc     func(ctx context.Context, userID int64) (string, error)
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (string, string, error)
	GetItemFunc             func(ctx context.Context, accessToken string) (*ItemInfo, error)
	GetInstitutionNameFunc  func(ctx context.Context, institutionID string) (string, error)
}

func (m *MockLinker) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, userID)
	}
	return "link-sandbox-token", nil
}

func (m *MockLinker) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return "access-sandbox-new", "item-new", nil
}

func (m *MockLinker) GetItem(ctx context.Context, accessToken string) (*ItemInfo, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, accessToken)
	}
	return &ItemInfo{ExternalID: "item-new", InstitutionID: "ins_109508"}, nil
}

func (m *MockLinker) GetInstitutionName(ctx context.Context, institutionID string) (string, error) {
	if m.GetInstitutionNameFunc != nil {
		return m.GetInstitutionNameFunc(ctx, institutionID)
	}
	return "First Platypus Bank", nil
}

type linkFixture struct {
	items   *MockItemRepository
	methods *MockPaymentMethodRepository
	queue   *MockTaskQueue
	svc     *LinkService
}

func newLinkFixture(linker *MockLinker, feed *MockFeed) *linkFixture {
	f := &linkFixture{
		items:   newMockItemRepository(),
		methods: newMockPaymentMethodRepository(),
		queue:   &MockTaskQueue{},
	}
	f.svc = NewLinkService(item.NewService(f.items), paymentmethod.NewService(f.methods), linker, feed, f.queue)
	return f
}

func TestExchange(t *testing.T) {
	savings := Account{ExternalID: "acc-savings", Name: "Plaid Saving", Type: "depository", Subtype: "savings", Mask: "1111"}
	f := newLinkFixture(&MockLinker{}, &MockFeed{Accounts: []Account{checking, savings}})

	res, err := f.svc.Exchange(context.Background(), 42, "public-sandbox-abc")
	require.NoError(t, err)

	assert.Equal(t, &LinkResult{Success: true, ItemID: "item-new", InstitutionName: "First Platypus Bank", Accounts: 2}, res)

	it := f.items.get("item-new")
	require.NotNil(t, it)
	assert.Equal(t, int64(42), it.UserID)
	assert.Equal(t, "access-sandbox-new", it.AccessToken)
	assert.Equal(t, "ins_109508", it.InstitutionID)
	assert.Nil(t, it.LastSyncedAt, "first sync covers the default window")

	pm := f.methods.methods["acc-savings"]
	require.NotNil(t, pm)
	assert.Equal(t, it.ID, pm.ItemID)
	assert.Equal(t, "First Platypus Bank", pm.InstitutionName)
	assert.True(t, pm.IsActive)

	assert.Equal(t, []string{"item-new"}, f.queue.items)
	assert.Equal(t, []string{synctask.ReasonLink}, f.queue.reasons)
}

func TestExchange_RelinkReactivatesAccounts(t *testing.T) {
	f := newLinkFixture(&MockLinker{}, &MockFeed{Accounts: []Account{checking}})
	f.methods.methods["acc-checking"] = &paymentmethod.PaymentMethod{
		ID:                "pm-acc-checking",
		ExternalAccountID: "acc-checking",
		UserID:            42,
		IsActive:          false,
	}

	_, err := f.svc.Exchange(context.Background(), 42, "public-sandbox-abc")
	require.NoError(t, err)

	pm := f.methods.methods["acc-checking"]
	assert.True(t, pm.IsActive)
	assert.Equal(t, "Plaid Checking", pm.Name)
}

func TestExchange_InstitutionFallback(t *testing.T) {
	tests := []struct {
		name   string
		linker *MockLinker
	}{
		{
			name: "lookup fails",
			linker: &MockLinker{GetInstitutionNameFunc: func(ctx context.Context, id string) (string, error) {
				return "", errors.New("INSTITUTION_NOT_FOUND")
			}},
		},
		{
			name: "no institution on item",
			linker: &MockLinker{GetItemFunc: func(ctx context.Context, accessToken string) (*ItemInfo, error) {
				return &ItemInfo{ExternalID: "item-new"}, nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLinkFixture(tt.linker, &MockFeed{Accounts: []Account{checking}})

			res, err := f.svc.Exchange(context.Background(), 42, "public-sandbox-abc")
			require.NoError(t, err)
			assert.Equal(t, "Unknown Institution", res.InstitutionName)
			assert.Equal(t, "Unknown Institution", f.items.get("item-new").InstitutionName)
		})
	}
}

func TestExchange_Errors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		linker  *MockLinker
		feed    *MockFeed
		wantErr error
	}{
		{name: "missing token", token: " ", linker: &MockLinker{}, feed: &MockFeed{}, wantErr: ErrPublicTokenRequired},
		{
			name:  "exchange fails",
			token: "public-sandbox-abc",
			linker: &MockLinker{ExchangePublicTokenFunc: func(ctx context.Context, publicToken string) (string, string, error) {
				return "", "", &codedError{code: "INVALID_PUBLIC_TOKEN"}
			}},
			feed:    &MockFeed{},
			wantErr: ErrLinkFailed,
		},
		{
			name:    "accounts fail",
			token:   "public-sandbox-abc",
			linker:  &MockLinker{},
			feed:    &MockFeed{AccountsErr: errors.New("timeout")},
			wantErr: ErrLinkFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLinkFixture(tt.linker, tt.feed)

			_, err := f.svc.Exchange(context.Background(), 42, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, f.items.get("item-new"))
			assert.Empty(t, f.queue.items)
		})
	}
}

func TestExchange_QueueFailureStillLinks(t *testing.T) {
	f := newLinkFixture(&MockLinker{}, &MockFeed{Accounts: []Account{checking}})
	f.queue.err = errors.New("db down")

	res, err := f.svc.Exchange(context.Background(), 42, "public-sandbox-abc")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestCreateLinkToken(t *testing.T) {
	f := newLinkFixture(&MockLinker{}, &MockFeed{})

	token, err := f.svc.CreateLinkToken(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-token", token)

	_, err = f.svc.CreateLinkToken(context.Background(), 0)
	assert.ErrorIs(t, err, item.ErrInvalidUserID)
}
