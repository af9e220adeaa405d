package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/banksync"
)

const (
	dateLayout      = "2006-01-02"
	pageSize        = 500
	defaultCurrency = "USD"
)

var (
	_ banksync.Feed   = (*Client)(nil)
	_ banksync.Linker = (*Client)(nil)
)

func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]banksync.Account, error) {
	var accounts []plaid.AccountBase
	err := c.call(ctx, "accounts_get", func(ctx context.Context) error {
		req := plaid.NewAccountsGetRequest(accessToken)
		resp, _, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
		if err != nil {
			return err
		}
		accounts = resp.GetAccounts()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]banksync.Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccount(a))
	}
	return out, nil
}

// FetchPage reads one page of /transactions/get. The cursor is the offset of
// the next page.
func (c *Client) FetchPage(ctx context.Context, req banksync.PageRequest) (*banksync.Page, error) {
	offset, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	var resp plaid.TransactionsGetResponse
	err = c.call(ctx, "transactions_get", func(ctx context.Context) error {
		r := plaid.NewTransactionsGetRequest(
			req.AccessToken,
			req.StartDate.Format(dateLayout),
			req.EndDate.Format(dateLayout),
		)
		r.SetOptions(plaid.TransactionsGetRequestOptions{
			Count:  plaid.PtrInt32(pageSize),
			Offset: plaid.PtrInt32(int32(offset)),
		})
		out, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*r).Execute()
		if err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	txs := resp.GetTransactions()
	page := &banksync.Page{Transactions: make([]banksync.RawTransaction, 0, len(txs))}
	for _, t := range txs {
		page.Transactions = append(page.Transactions, toRawTransaction(t))
	}

	next := offset + len(txs)
	if len(txs) > 0 && next < int(resp.GetTotalTransactions()) {
		page.HasMore = true
		page.NextCursor = encodeCursor(next)
	}

	if raw, err := json.Marshal(resp); err == nil {
		page.Raw = raw
	}
	return page, nil
}

func (c *Client) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := c.call(ctx, "link_token_create", func(ctx context.Context) error {
		user := plaid.LinkTokenCreateRequestUser{ClientUserId: strconv.FormatInt(userID, 10)}
		req := plaid.NewLinkTokenCreateRequest(c.clientName, "en", c.countries, user)
		req.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		if c.webhookURL != "" {
			req.SetWebhook(c.webhookURL)
		}
		resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
		if err != nil {
			return err
		}
		token = resp.GetLinkToken()
		return nil
	})
	return token, err
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	var accessToken, itemID string
	err := c.call(ctx, "item_public_token_exchange", func(ctx context.Context) error {
		req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
		resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
		if err != nil {
			return err
		}
		accessToken, itemID = resp.GetAccessToken(), resp.GetItemId()
		return nil
	})
	return accessToken, itemID, err
}

func (c *Client) GetItem(ctx context.Context, accessToken string) (*banksync.ItemInfo, error) {
	var info banksync.ItemInfo
	err := c.call(ctx, "item_get", func(ctx context.Context) error {
		req := plaid.NewItemGetRequest(accessToken)
		resp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*req).Execute()
		if err != nil {
			return err
		}
		it := resp.GetItem()
		info = banksync.ItemInfo{ExternalID: it.GetItemId(), InstitutionID: it.GetInstitutionId()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetInstitutionName(ctx context.Context, institutionID string) (string, error) {
	var name string
	err := c.call(ctx, "institutions_get_by_id", func(ctx context.Context) error {
		req := plaid.NewInstitutionsGetByIdRequest(institutionID, c.countries)
		resp, _, err := c.api.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
		if err != nil {
			return err
		}
		inst := resp.GetInstitution()
		name = inst.GetName()
		return nil
	})
	return name, err
}

func toAccount(a plaid.AccountBase) banksync.Account {
	return banksync.Account{
		ExternalID:   a.GetAccountId(),
		Name:         a.GetName(),
		OfficialName: a.GetOfficialName(),
		Type:         string(a.GetType()),
		Subtype:      string(a.GetSubtype()),
		Mask:         a.GetMask(),
	}
}

func toRawTransaction(t plaid.Transaction) banksync.RawTransaction {
	raw := banksync.RawTransaction{
		ExternalID:   t.GetTransactionId(),
		AccountID:    t.GetAccountId(),
		Amount:       decimal.NewFromFloat(t.GetAmount()),
		Currency:     currency(t),
		MerchantName: strings.TrimSpace(t.GetMerchantName()),
		Name:         strings.TrimSpace(t.GetName()),
		Category:     t.GetCategory(),
		Pending:      t.GetPending(),
	}

	if d, err := time.Parse(dateLayout, t.GetDate()); err == nil {
		raw.Date = d
	}
	if s := t.GetAuthorizedDate(); s != "" {
		if d, err := time.Parse(dateLayout, s); err == nil {
			raw.AuthorizedDate = &d
		}
	}
	if loc, err := json.Marshal(t.GetLocation()); err == nil {
		raw.Location = loc
	}
	return raw
}

func currency(t plaid.Transaction) string {
	if c := t.GetIsoCurrencyCode(); c != "" {
		return c
	}
	if c := t.GetUnofficialCurrencyCode(); c != "" {
		return c
	}
	return defaultCurrency
}

func encodeCursor(offset int) string {
	return strconv.Itoa(offset)
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid transactions cursor %q", cursor)
	}
	return offset, nil
}
