package transaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction sources.
const (
	SourcePlaid  = "plaid"
	SourceCash   = "cash"
	SourceManual = "manual"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateExternalID = errors.New("transaction with this external id already exists")
	ErrInvalidUserID       = errors.New("valid user ID is required")
)

// Transaction is a stored transaction. Amount keeps the sign the aggregator
// delivered; display values are derived on read.
type Transaction struct {
	ID               string
	ExternalID       string
	UserID           int64
	PaymentMethodID  string
	MerchantID       string
	Source           string
	Amount           decimal.Decimal
	Currency         string
	Date             time.Time
	AuthorizedDate   *time.Time
	PostedDate       *time.Time
	MerchantName     string
	Category         string
	CategoryDetailed string
	Location         json.RawMessage
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Joined on read.
	PaymentMethod      *PaymentMethodRef
	MerchantEntityName string
	Cash               *CashRecord
}

// PaymentMethodRef is the slice of a payment method needed for display.
type PaymentMethodRef struct {
	ID              string
	Name            string
	Type            string
	Subtype         string
	Mask            string
	InstitutionName string
}

// CashRecord marks a manually entered cash transaction.
type CashRecord struct {
	ShopName    string
	SubmittedAt time.Time
}

// CreateParams holds a new transaction as delivered by its source.
type CreateParams struct {
	ExternalID       string
	UserID           int64
	PaymentMethodID  string
	MerchantID       string
	Source           string
	Amount           decimal.Decimal
	Currency         string
	Date             time.Time
	AuthorizedDate   *time.Time
	PostedDate       *time.Time
	MerchantName     string
	Category         string
	CategoryDetailed string
	Location         json.RawMessage
}

// Query is a store-side listing request. Text, when set, is matched with a
// case-insensitive contains on merchant name and category.
type Query struct {
	UserID int64
	Text   string
	Limit  int
	Offset int
}

// PaymentMethodDetails is the structured payment method in listings.
type PaymentMethodDetails struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Mask    string `json:"mask"`
	Display string `json:"display"`
}

// Summary is one row of the transaction listing.
type Summary struct {
	ID                   string                `json:"id"`
	Company              string                `json:"company"`
	Amount               float64               `json:"amount"`
	Date                 string                `json:"date"`
	MerchantName         string                `json:"merchantName"`
	Category             string                `json:"category"`
	PaymentMethod        string                `json:"paymentMethod"`
	PaymentMethodDetails *PaymentMethodDetails `json:"paymentMethodDetails"`
	Source               string                `json:"source"`
	StoreLogoURL         *string               `json:"storeLogoUrl"`
}

// Detail is the single transaction view.
type Detail struct {
	ID                string   `json:"id"`
	StoreName         string   `json:"storeName"`
	Date              string   `json:"date"`
	Location          string   `json:"location"`
	TransactionNumber string   `json:"transactionNumber"`
	PaymentMethod     string   `json:"paymentMethod"`
	Barcode           *string  `json:"barcode"`
	Items             []string `json:"items"`
	Subtotal          float64  `json:"subtotal"`
	Tax               float64  `json:"tax"`
	Total             float64  `json:"total"`
	Amount            float64  `json:"amount"`
	Category          string   `json:"category"`
	Notes             *string  `json:"notes"`
	Source            string   `json:"source"`
	ShopName          *string  `json:"shopName"`
	StoreLogoURL      *string  `json:"storeLogoUrl"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Transactions []Summary  `json:"transactions"`
	Pagination   Pagination `json:"pagination"`
}

const dateLayout = "2006-01-02"
