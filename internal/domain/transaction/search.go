package transaction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	separatedDigitsPattern = regexp.MustCompile(`^\d+([./-]\d+)*$`)
	dollarAmountPattern    = regexp.MustCompile(`^\$?\d+\.?\d*$`)
	shortDatePattern       = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}`)
	monthPrefixPattern     = regexp.MustCompile(`(?i)^(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`)
	anyDigitPattern        = regexp.MustCompile(`\d`)
	digitsOnlyPattern      = regexp.MustCompile(`^\d+$`)
)

// IsNumericOrDateQuery reports whether q looks like an amount or a date.
// Such queries are matched in the application because the store cannot do
// prefix matching over formatted amounts and dates.
func IsNumericOrDateQuery(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return false
	}
	return separatedDigitsPattern.MatchString(q) ||
		dollarAmountPattern.MatchString(q) ||
		shortDatePattern.MatchString(q) ||
		monthPrefixPattern.MatchString(q) ||
		anyDigitPattern.MatchString(q)
}

// Filters narrow a listing. Zero values disable a filter.
type Filters struct {
	From           *time.Time
	To             *time.Time
	MinAmount      *decimal.Decimal
	MaxAmount      *decimal.Decimal
	PaymentMethods []string
}

func (f Filters) Active() bool {
	return f.From != nil || f.To != nil || f.MinAmount != nil || f.MaxAmount != nil || len(f.PaymentMethods) > 0
}

// candidate carries the derived values search and filters look at.
type candidate struct {
	tx      *Transaction
	display decimal.Decimal
	label   string
}

func newCandidate(t *Transaction) candidate {
	return candidate{tx: t, display: displayAmountOf(t), label: PaymentMethodLabel(t.PaymentMethod)}
}

// matchesSearch is the application-side search predicate.
func matchesSearch(c candidate, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}

	t := c.tx
	if strings.HasPrefix(strings.ToLower(t.MerchantName), q) ||
		strings.HasPrefix(strings.ToLower(t.MerchantEntityName), q) ||
		strings.HasPrefix(strings.ToLower(t.Category), q) {
		return true
	}

	return amountMatches(c.display.Abs(), q) || dateMatches(t.Date, q)
}

func amountMatches(abs decimal.Decimal, q string) bool {
	formatted := abs.StringFixed(2)

	if digitsOnlyPattern.MatchString(q) && strings.HasPrefix(abs.Truncate(0).String(), q) {
		return true
	}
	if strings.HasPrefix(formatted, q) {
		return true
	}
	return strings.HasPrefix(q, "$") && strings.HasPrefix("$"+formatted, q)
}

// dateMatches prefix-matches q against renderings of d. A bare number only
// meets month-led forms so that "2" does not hit every date in 2026; year
// forms need a separator in the query.
func dateMatches(d time.Time, q string) bool {
	m, day, yy, yyyy := int(d.Month()), d.Day(), d.Year()%100, d.Year()

	if digitsOnlyPattern.MatchString(q) {
		if q == strconv.Itoa(m) {
			return true
		}
		return hasAnyPrefix(q,
			fmt.Sprintf("%d/%d/%02d", m, day, yy),
			fmt.Sprintf("%02d/%02d/%d", m, day, yyyy),
		)
	}

	if strings.ContainsAny(q, "/-") {
		return hasAnyPrefix(q,
			fmt.Sprintf("%d/%d/%02d", m, day, yy),
			fmt.Sprintf("%02d/%02d/%d", m, day, yyyy),
			fmt.Sprintf("%d/%d", m, day),
			fmt.Sprintf("%d-%d-%02d", m, day, yy),
			fmt.Sprintf("%02d-%02d-%d", m, day, yyyy),
			d.Format(dateLayout),
		)
	}

	month := strings.ToLower(d.Month().String())
	return hasAnyPrefix(q,
		fmt.Sprintf("%s %d, %d", month, day, yyyy),
		fmt.Sprintf("%s %d, %d", month[:3], day, yyyy),
		fmt.Sprintf("%s %d", month[:3], day),
	)
}

func hasAnyPrefix(q string, renderings ...string) bool {
	for _, r := range renderings {
		if strings.HasPrefix(r, q) {
			return true
		}
	}
	return false
}

// matchesFilters applies the date, amount and payment method filters.
func matchesFilters(c candidate, f Filters) bool {
	day := truncateDay(c.tx.Date)
	if f.From != nil && day.Before(truncateDay(*f.From)) {
		return false
	}
	if f.To != nil && day.After(truncateDay(*f.To)) {
		return false
	}

	abs := c.display.Abs()
	if f.MinAmount != nil && abs.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && abs.GreaterThan(*f.MaxAmount) {
		return false
	}

	if len(f.PaymentMethods) > 0 {
		found := false
		for _, pm := range f.PaymentMethods {
			if pm == c.label {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
