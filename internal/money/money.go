// Package money converts between the float amounts clients send and the
// representations collaborators expect.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

var ErrOutOfRange = errors.New("amount out of range")

// FormatAmount renders amount with two decimals, rounding half away from zero.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// ToMinorUnits converts a major-unit amount to rounded minor units (cents).
// It returns ErrOutOfRange when the result does not fit in an int64.
func ToMinorUnits(amount float64) (int64, error) {
	minor := decimal.NewFromFloat(amount).Mul(hundred).Round(0)
	if minor.GreaterThan(maxInt64) || minor.LessThan(minInt64) {
		return 0, ErrOutOfRange
	}
	return minor.IntPart(), nil
}

// Valid reports whether amount is a finite, non-negative number.
func Valid(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}
