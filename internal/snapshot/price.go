package snapshot

import (
	"strings"

	"github.com/shopspring/decimal"
)

const currencySymbols = "$€£¥"

// ParsePrice turns captured price text such as "$1,299.00" into a decimal.
// The second result is false when the text is not a number.
func ParsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, currencySymbols)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FormatPrice renders d as a two-decimal dollar amount.
func FormatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
