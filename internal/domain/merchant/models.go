package merchant

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrInvalidName      = errors.New("merchant name is required")
)

type Merchant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeName trims the name used as the merchant key.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
