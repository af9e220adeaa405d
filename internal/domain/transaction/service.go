package transaction

import (
	"context"
	"strings"

	"finsync/internal/shared/logger"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// appSideFetchLimit bounds how many rows are pulled for application-side
	// matching.
	appSideFetchLimit = 5000
)

// ListParams is one listing request.
type ListParams struct {
	UserID  int64
	Page    int
	Limit   int
	Search  string
	Filters Filters
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a transaction as delivered.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if params.UserID <= 0 {
		return nil, ErrInvalidUserID
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	return s.repo.Create(ctx, params)
}

func (s *Service) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	return s.repo.ExistsByExternalID(ctx, externalID)
}

// List serves a page of transactions. Plain listings and text searches are
// paginated by the store. Amount or date searches and any filter are
// evaluated here over the most recent appSideFetchLimit rows.
func (s *Service) List(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.UserID <= 0 {
		return nil, ErrInvalidUserID
	}
	p.normalize()

	numeric := IsNumericOrDateQuery(p.Search)

	if !numeric && !p.Filters.Active() {
		rows, total, err := s.repo.List(ctx, Query{
			UserID: p.UserID,
			Text:   p.Search,
			Limit:  p.Limit,
			Offset: (p.Page - 1) * p.Limit,
		})
		if err != nil {
			return nil, err
		}
		return &ListResult{
			Transactions: summaries(rows),
			Pagination:   paginate(p.Page, p.Limit, total),
		}, nil
	}

	q := Query{UserID: p.UserID, Limit: appSideFetchLimit}
	if !numeric {
		q.Text = p.Search
	}
	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if total > len(rows) {
		logger.FromContext(ctx).Debug().
			Int64("user_id", p.UserID).
			Int("total", total).
			Int("fetched", len(rows)).
			Msg("application-side search truncated to most recent rows")
	}

	matched := make([]*Transaction, 0, len(rows))
	for _, t := range rows {
		c := newCandidate(t)
		if numeric && !matchesSearch(c, p.Search) {
			continue
		}
		if !matchesFilters(c, p.Filters) {
			continue
		}
		matched = append(matched, t)
	}

	start := (p.Page - 1) * p.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return &ListResult{
		Transactions: summaries(matched[start:end]),
		Pagination:   paginate(p.Page, p.Limit, len(matched)),
	}, nil
}

// Get returns the detail view of a transaction owned by userID.
func (s *Service) Get(ctx context.Context, userID int64, id string) (*Detail, error) {
	if id == "" {
		return nil, ErrTransactionNotFound
	}
	t, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	d := NewDetail(t)
	return &d, nil
}

func paginate(page, limit, total int) Pagination {
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

func summaries(rows []*Transaction) []Summary {
	out := make([]Summary, 0, len(rows))
	for _, t := range rows {
		out = append(out, NewSummary(t))
	}
	return out
}

// NewSummary derives the listing row of t.
func NewSummary(t *Transaction) Summary {
	label := PaymentMethodLabel(t.PaymentMethod)

	s := Summary{
		ID:            t.ID,
		Company:       t.MerchantName,
		Amount:        displayAmountOf(t).InexactFloat64(),
		Date:          t.Date.Format(dateLayout),
		MerchantName:  t.MerchantName,
		Category:      t.Category,
		PaymentMethod: label,
		Source:        t.Source,
		StoreLogoURL:  logoPtr(t.MerchantName),
	}
	if pm := t.PaymentMethod; pm != nil {
		s.PaymentMethodDetails = &PaymentMethodDetails{
			Type:    pm.Type,
			Subtype: pm.Subtype,
			Mask:    pm.Mask,
			Display: label,
		}
	}
	return s
}

// NewDetail derives the detail view of t.
func NewDetail(t *Transaction) Detail {
	amount := displayAmountOf(t).InexactFloat64()
	number := transactionNumber(t.ID)

	d := Detail{
		ID:                t.ID,
		StoreName:         t.MerchantName,
		Date:              t.Date.Format(dateLayout),
		Location:          LocationDisplay(t.Location, t.MerchantName),
		TransactionNumber: number,
		PaymentMethod:     PaymentMethodLabel(t.PaymentMethod),
		Items:             []string{},
		Subtotal:          amount,
		Total:             amount,
		Amount:            amount,
		Category:          t.Category,
		Source:            t.Source,
		StoreLogoURL:      logoPtr(t.MerchantName),
	}
	if t.Notes != "" {
		notes := t.Notes
		d.Notes = &notes
	}
	if t.Cash != nil {
		barcode := "*" + number + "*"
		shop := t.Cash.ShopName
		d.Barcode = &barcode
		d.ShopName = &shop
	}
	return d
}

// transactionNumber is the upper-cased last eight characters of id.
func transactionNumber(id string) string {
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}
