package paymentmethod

import (
	"errors"
	"time"
)

// Account types as reported by the aggregator.
const (
	TypeDepository = "depository"
	TypeCredit     = "credit"
	TypeLoan       = "loan"
	TypeOther      = "other"
)

var (
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrInvalidAccountID      = errors.New("external account id is required")
	ErrInvalidUserID         = errors.New("valid user ID is required")
)

// PaymentMethod is one financial account linked to a user.
type PaymentMethod struct {
	ID                string    `json:"id"`
	ExternalAccountID string    `json:"plaidAccountId"`
	ItemID            string    `json:"-"`
	ExternalItemID    string    `json:"plaidItemId"`
	UserID            int64     `json:"-"`
	Name              string    `json:"name"`
	Type              string    `json:"accountType"`
	Subtype           string    `json:"subtype"`
	Mask              string    `json:"mask"`
	OfficialName      string    `json:"officialName"`
	InstitutionName   string    `json:"institutionName"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UpsertParams keys a payment method by its external account id.
type UpsertParams struct {
	ExternalAccountID string
	ItemID            string
	UserID            int64
	Name              string
	Type              string
	Subtype           string
	Mask              string
	OfficialName      string
	InstitutionName   string
	// Reactivate turns a deactivated account back on. Sync leaves it false so
	// an account the user removed stays removed until they relink.
	Reactivate bool
}

func (p UpsertParams) Validate() error {
	if p.ExternalAccountID == "" {
		return ErrInvalidAccountID
	}
	if p.UserID <= 0 {
		return ErrInvalidUserID
	}
	return nil
}

// Summary is the listing shape of a payment method.
type Summary struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Details        string  `json:"details"`
	CardNumber     string  `json:"cardNumber"`
	BankName       string  `json:"bankName"`
	AccountNumber  string  `json:"accountNumber"`
	PlaidAccountID string  `json:"plaidAccountId"`
	PlaidItemID    *string `json:"plaidItemId"`
}

// Detail is the single payment method view.
type Detail struct {
	Summary
	Subtype         string `json:"subtype"`
	Name            string `json:"name"`
	OfficialName    string `json:"officialName"`
	Mask            string `json:"mask"`
	InstitutionName string `json:"institutionName"`
}

// KindLabel is the coarse account kind shown in payment method lists.
func (pm *PaymentMethod) KindLabel() string {
	if pm.Type == TypeDepository {
		return "Bank Account"
	}
	return "Credit Card"
}

// Details is "{name} xxxx {mask}", or just the name without a mask.
func (pm *PaymentMethod) Details() string {
	if pm.Mask == "" {
		return pm.Name
	}
	return pm.Name + " xxxx " + pm.Mask
}

func (pm *PaymentMethod) Summary() Summary {
	s := Summary{
		ID:             pm.ID,
		Type:           pm.KindLabel(),
		Details:        pm.Details(),
		CardNumber:     pm.Mask,
		BankName:       pm.InstitutionName,
		AccountNumber:  pm.Mask,
		PlaidAccountID: pm.ExternalAccountID,
	}
	if pm.ExternalItemID != "" {
		id := pm.ExternalItemID
		s.PlaidItemID = &id
	}
	return s
}

func (pm *PaymentMethod) Detail() Detail {
	return Detail{
		Summary:         pm.Summary(),
		Subtype:         pm.Subtype,
		Name:            pm.Name,
		OfficialName:    pm.OfficialName,
		Mask:            pm.Mask,
		InstitutionName: pm.InstitutionName,
	}
}
