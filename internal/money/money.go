// Package money converts between the wire/snapshot representation of cash
// (decimal dollar strings, two fractional digits) and the integer cents
// used for every arithmetic operation inside the core. The conversion
// happens exactly once per field, at the coordinator's edges; decimal
// dollar values are never added, subtracted, or compared directly.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a wire dollar string doesn't parse as a
// decimal number.
var ErrInvalidAmount = errors.New("money: invalid decimal amount")

// CentsToDecimal renders an integer cent amount as a decimal dollar value.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// DecimalToCents converts a decimal dollar value to integer cents, rounding
// to the nearest cent. Used only at the wire/snapshot boundary.
func DecimalToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// ParseDollars parses a wire dollar string ("12.34") into integer cents.
func ParseDollars(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	return DecimalToCents(d), nil
}

// FormatDollars renders integer cents as a two-fractional-digit dollar
// string, the wire/snapshot representation.
func FormatDollars(cents int64) string {
	return CentsToDecimal(cents).StringFixed(2)
}
