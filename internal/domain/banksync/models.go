package banksync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrItemIDRequired      = errors.New("item ID required")
	ErrPublicTokenRequired = errors.New("public token required")
	ErrSyncFailed          = errors.New("failed to sync transactions")
	ErrLinkFailed          = errors.New("failed to exchange public token")
)

const (
	defaultErrorCode       = "SYNC_ERROR"
	unknownInstitutionName = "Unknown Institution"
)

// SyncRequest identifies the item to sync. A non-zero UserID restricts the
// sync to items owned by that user.
type SyncRequest struct {
	ExternalItemID string
	UserID         int64
}

// SyncResult is the outcome of one SyncItem call. Incomplete is set when the
// page or time cap stopped the feed before it was exhausted.
type SyncResult struct {
	Synced     int  `json:"synced"`
	Skipped    int  `json:"skipped"`
	Total      int  `json:"total"`
	Incomplete bool `json:"incomplete"`
}

// Account is an aggregator account as listed for an item.
type Account struct {
	ExternalID   string
	Name         string
	OfficialName string
	Type         string
	Subtype      string
	Mask         string
}

// PageRequest asks the feed for one page of transactions dated between
// StartDate and EndDate inclusive. Cursor is empty for the first page.
type PageRequest struct {
	AccessToken string
	StartDate   time.Time
	EndDate     time.Time
	Cursor      string
}

// Page is one page of the feed. Raw holds the page as received, for
// archiving.
type Page struct {
	Transactions []RawTransaction
	HasMore      bool
	NextCursor   string
	Raw          json.RawMessage
}

// RawTransaction is a transaction as delivered by the aggregator.
type RawTransaction struct {
	ExternalID     string
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	Date           time.Time
	AuthorizedDate *time.Time
	MerchantName   string
	Name           string
	Category       []string
	Location       json.RawMessage
	Pending        bool
}

// DisplayName is the merchant name when present, else the description.
func (t RawTransaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

func (t RawTransaction) PrimaryCategory() string {
	if len(t.Category) == 0 {
		return ""
	}
	return t.Category[0]
}

// Feed is the aggregator side of a sync.
type Feed interface {
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// Notifier delivers user-facing sync notifications. Implementations are best
// effort.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, userID int64, itemID, institution string, count int) error
	NotifyNeedsAttention(ctx context.Context, userID int64, itemID, institution string) error
}

// Archiver keeps a raw copy of fetched feed pages.
type Archiver interface {
	ArchivePage(ctx context.Context, itemID string, page int, raw []byte) error
}

// coded is implemented by upstream errors that carry an aggregator error code.
type coded interface {
	ErrorCode() string
}

// ErrorCode returns the aggregator error code carried by err, or SYNC_ERROR.
func ErrorCode(err error) string {
	var c coded
	if errors.As(err, &c) && c.ErrorCode() != "" {
		return c.ErrorCode()
	}
	return defaultErrorCode
}
