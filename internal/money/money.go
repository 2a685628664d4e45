// Package money converts minor-unit amounts for display.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FromCents converts an amount in minor units to a decimal in major units.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a major-unit decimal to minor units, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// Format renders cents as "USD 12.34".
func Format(cents int64, currency string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(currency), FromCents(cents).StringFixed(2))
}
