// Package amount converts decimal monetary quantities to and from the internal
// fixed-point representation: an unsigned count of hundredths (centimes).
package amount

import (
	"strings"

	"github.com/shopspring/decimal"

	ledgererrors "github.com/devrev/toypay/internal/errors"
)

const (
	// Scale is the number of fractional digits kept internally.
	Scale = 2

	// MaxCentimes is the largest representable amount in hundredths.
	MaxCentimes = ^uint32(0)
)

// Max is the largest accepted decimal amount (42949672.95).
var Max = decimal.New(int64(MaxCentimes), -Scale)

// ToInternal converts a decimal amount to centimes. Values that would need
// rounding are rejected rather than rounded.
func ToInternal(d decimal.Decimal) (uint32, error) {
	if d.IsNegative() {
		return 0, ledgererrors.AmountNegative(d.String())
	}
	if d.GreaterThan(Max) {
		return 0, ledgererrors.AmountTooLarge(d.String(), Max.StringFixed(Scale))
	}

	scaled := d.Shift(Scale)
	if !scaled.IsInteger() {
		return 0, ledgererrors.AmountPrecisionLoss(d.String())
	}

	return uint32(scaled.IntPart()), nil
}

// ToDecimal converts centimes back to a decimal amount.
func ToDecimal(centimes uint32) decimal.Decimal {
	return decimal.New(int64(centimes), -Scale)
}

// ToDecimal64 is ToDecimal for derived sums of two uint32 balances, which
// always fit in an int64.
func ToDecimal64(centimes uint64) decimal.Decimal {
	return decimal.New(int64(centimes), -Scale)
}

// Format renders centimes with exactly two fractional digits.
func Format(centimes uint32) string {
	return ToDecimal(centimes).StringFixed(Scale)
}

// Parse reads a decimal amount, ignoring surrounding whitespace.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}
