package transaction

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/paymentmethod"
)

// depositKeywords keep a positive depository amount positive. The match is a
// plain substring test, so a merchant such as "Transfer Co." is treated as a
// deposit too.
var depositKeywords = []string{"transfer", "deposit", "interest", "payroll", "direct deposit"}

// DisplayAmount maps a stored amount to the outward convention: purchases
// negative, deposits and credits positive.
func DisplayAmount(amount decimal.Decimal, accountType, merchantName, category string) decimal.Decimal {
	if !amount.IsPositive() {
		return amount
	}

	switch accountType {
	case paymentmethod.TypeCredit:
		return amount.Abs().Neg()
	case paymentmethod.TypeDepository:
		if strings.TrimSpace(merchantName) == "" {
			return amount
		}
		if hasDepositSignal(merchantName) || hasDepositSignal(category) {
			return amount
		}
		return amount.Abs().Neg()
	}
	return amount
}

func hasDepositSignal(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range depositKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// PaymentMethodLabel renders a payment method as "Checking •••• 1234".
func PaymentMethodLabel(pm *PaymentMethodRef) string {
	if pm == nil {
		return "Cash"
	}

	var label string
	switch {
	case pm.Subtype != "":
		label = strings.ReplaceAll(capitalizeFirst(pm.Subtype), "_", " ")
	case pm.Type == paymentmethod.TypeDepository:
		label = "Checking"
	case pm.Type == paymentmethod.TypeCredit:
		label = "Credit card"
	case pm.Type == paymentmethod.TypeLoan:
		label = "Loan"
	case pm.Type != "":
		label = capitalizeFirst(pm.Type)
	default:
		label = "Account"
	}

	if pm.Mask != "" {
		label += " •••• " + pm.Mask
	}
	return label
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func accountType(t *Transaction) string {
	if t.PaymentMethod == nil {
		return ""
	}
	return t.PaymentMethod.Type
}

// displayAmountOf applies DisplayAmount to a stored transaction.
func displayAmountOf(t *Transaction) decimal.Decimal {
	return DisplayAmount(t.Amount, accountType(t), t.MerchantName, t.Category)
}
