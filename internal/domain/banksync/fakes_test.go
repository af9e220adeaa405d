package banksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finsync/internal/domain/item"
	"finsync/internal/domain/merchant"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/transaction"
)

// In-memory repositories shared by the banksync tests.

type MockItemRepository struct {
	mu    sync.Mutex
	items map[string]*item.Item
}

func newMockItemRepository(items ...*item.Item) *MockItemRepository {
	m := &MockItemRepository{items: make(map[string]*item.Item)}
	for _, it := range items {
		m.items[it.ExternalID] = it
	}
	return m
}

func (m *MockItemRepository) get(externalID string) *item.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[externalID]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

func (m *MockItemRepository) Upsert(ctx context.Context, params item.UpsertParams) (*item.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[params.ExternalID]
	if !ok {
		it = &item.Item{ID: "item-row-" + params.ExternalID, ExternalID: params.ExternalID, UserID: params.UserID}
		m.items[params.ExternalID] = it
	}
	it.AccessToken = params.AccessToken
	it.InstitutionID = params.InstitutionID
	it.InstitutionName = params.InstitutionName
	it.Error = nil
	cp := *it
	return &cp, nil
}

func (m *MockItemRepository) GetByExternalID(ctx context.Context, externalID string) (*item.Item, error) {
	if it := m.get(externalID); it != nil {
		return it, nil
	}
	return nil, item.ErrItemNotFound
}

func (m *MockItemRepository) ListByUserID(ctx context.Context, userID int64) ([]*item.Item, error) {
	return nil, nil
}

func (m *MockItemRepository) ListSyncable(ctx context.Context) ([]*item.Item, error) {
	return nil, nil
}

func (m *MockItemRepository) MarkSynced(ctx context.Context, externalID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[externalID]
	if !ok {
		return item.ErrItemNotFound
	}
	it.LastSyncedAt = &at
	it.Error = nil
	return nil
}

func (m *MockItemRepository) RecordError(ctx context.Context, externalID string, syncErr item.SyncError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[externalID]
	if !ok {
		return item.ErrItemNotFound
	}
	it.Error = &syncErr
	return nil
}

type MockPaymentMethodRepository struct {
	mu      sync.Mutex
	methods map[string]*paymentmethod.PaymentMethod
}

func newMockPaymentMethodRepository(pms ...*paymentmethod.PaymentMethod) *MockPaymentMethodRepository {
	m := &MockPaymentMethodRepository{methods: make(map[string]*paymentmethod.PaymentMethod)}
	for _, pm := range pms {
		m.methods[pm.ExternalAccountID] = pm
	}
	return m
}

func (m *MockPaymentMethodRepository) Upsert(ctx context.Context, params paymentmethod.UpsertParams) (*paymentmethod.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.methods[params.ExternalAccountID]
	if !ok {
		pm = &paymentmethod.PaymentMethod{
			ID:                "pm-" + params.ExternalAccountID,
			ExternalAccountID: params.ExternalAccountID,
			IsActive:          true,
		}
		m.methods[params.ExternalAccountID] = pm
	}
	pm.ItemID = params.ItemID
	pm.UserID = params.UserID
	pm.Name = params.Name
	pm.Type = params.Type
	pm.Subtype = params.Subtype
	pm.Mask = params.Mask
	pm.OfficialName = params.OfficialName
	pm.InstitutionName = params.InstitutionName
	if params.Reactivate {
		pm.IsActive = true
	}
	cp := *pm
	return &cp, nil
}

func (m *MockPaymentMethodRepository) ListActiveByItemID(ctx context.Context, itemID string) ([]*paymentmethod.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*paymentmethod.PaymentMethod
	for _, pm := range m.methods {
		if pm.ItemID == itemID && pm.IsActive {
			cp := *pm
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentMethodRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*paymentmethod.PaymentMethod, error) {
	return nil, nil
}

func (m *MockPaymentMethodRepository) GetByID(ctx context.Context, id string, userID int64) (*paymentmethod.PaymentMethod, error) {
	return nil, paymentmethod.ErrPaymentMethodNotFound
}

func (m *MockPaymentMethodRepository) Deactivate(ctx context.Context, id string, userID int64) error {
	return nil
}

type MockMerchantRepository struct {
	mu        sync.Mutex
	merchants map[string]*merchant.Merchant
	err       error
}

func newMockMerchantRepository(names ...string) *MockMerchantRepository {
	m := &MockMerchantRepository{merchants: make(map[string]*merchant.Merchant)}
	for _, n := range names {
		m.merchants[n] = &merchant.Merchant{ID: "m-" + n, Name: n}
	}
	return m
}

func (m *MockMerchantRepository) Upsert(ctx context.Context, name, category string) (*merchant.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	mr, ok := m.merchants[name]
	if !ok {
		mr = &merchant.Merchant{ID: "m-" + name, Name: name, Category: category}
		m.merchants[name] = mr
	}
	return mr, nil
}

func (m *MockMerchantRepository) GetByName(ctx context.Context, name string) (*merchant.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mr, ok := m.merchants[name]; ok {
		return mr, nil
	}
	return nil, merchant.ErrMerchantNotFound
}

type MockTransactionRepository struct {
	mu   sync.Mutex
	rows map[string]transaction.CreateParams

	// CreateFunc, when set, replaces the in-memory insert.
	CreateFunc func(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
}

func newMockTransactionRepository(existing ...string) *MockTransactionRepository {
	m := &MockTransactionRepository{rows: make(map[string]transaction.CreateParams)}
	for _, id := range existing {
		m.rows[id] = transaction.CreateParams{ExternalID: id}
	}
	return m
}

func (m *MockTransactionRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockTransactionRepository) row(externalID string) (transaction.CreateParams, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[externalID]
	return p, ok
}

func (m *MockTransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[params.ExternalID]; ok {
		return nil, transaction.ErrDuplicateExternalID
	}
	m.rows[params.ExternalID] = params
	return &transaction.Transaction{ID: "tx-" + params.ExternalID, ExternalID: params.ExternalID}, nil
}

func (m *MockTransactionRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[externalID]
	return ok, nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string, userID int64) (*transaction.Transaction, error) {
	return nil, transaction.ErrTransactionNotFound
}

func (m *MockTransactionRepository) List(ctx context.Context, q transaction.Query) ([]*transaction.Transaction, int, error) {
	return nil, 0, nil
}

// MockFeed serves a fixed account list and calls FetchPageFunc for pages.
type MockFeed struct {
	mu            sync.Mutex
	Accounts      []Account
	AccountsErr   error
	FetchPageFunc func(ctx context.Context, req PageRequest) (*Page, error)
	requests      []PageRequest
}

func (f *MockFeed) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	if f.AccountsErr != nil {
		return nil, f.AccountsErr
	}
	return f.Accounts, nil
}

func (f *MockFeed) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.FetchPageFunc != nil {
		return f.FetchPageFunc(ctx, req)
	}
	return &Page{}, nil
}

func (f *MockFeed) calls() []PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PageRequest(nil), f.requests...)
}

// pagedFeed splits txs into pages of size n keyed by an offset cursor.
func pagedFeed(accounts []Account, txs []RawTransaction, n int) *MockFeed {
	return &MockFeed{
		Accounts: accounts,
		FetchPageFunc: func(ctx context.Context, req PageRequest) (*Page, error) {
			offset := 0
			if req.Cursor != "" {
				if _, err := fmt.Sscanf(req.Cursor, "%d", &offset); err != nil {
					return nil, err
				}
			}
			end := offset + n
			if end > len(txs) {
				end = len(txs)
			}
			p := &Page{Transactions: txs[offset:end], Raw: []byte(`{"page":true}`)}
			if end < len(txs) {
				p.HasMore = true
				p.NextCursor = fmt.Sprint(end)
			}
			return p, nil
		},
	}
}

type notifyCall struct {
	kind   string
	userID int64
	itemID string
	count  int
}

type MockNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *MockNotifier) NotifySyncComplete(ctx context.Context, userID int64, itemID, institution string, count int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{kind: "complete", userID: userID, itemID: itemID, count: count})
	return nil
}

func (n *MockNotifier) NotifyNeedsAttention(ctx context.Context, userID int64, itemID, institution string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{kind: "attention", userID: userID, itemID: itemID})
	return nil
}

type MockArchiver struct {
	mu    sync.Mutex
	pages []int
}

func (a *MockArchiver) ArchivePage(ctx context.Context, itemID string, page int, raw []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = append(a.pages, page)
	return nil
}

// codedError mimics an upstream error carrying an aggregator code.
type codedError struct {
	code string
}

func (e *codedError) Error() string     { return "upstream: " + e.code }
func (e *codedError) ErrorCode() string { return e.code }

type MockTaskQueue struct {
	mu      sync.Mutex
	items   []string
	reasons []string
	err     error
}

func (q *MockTaskQueue) Enqueue(ctx context.Context, itemID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, itemID)
	q.reasons = append(q.reasons, reason)
	return q.err
}
