// Package money converts between wire amounts in major currency units and
// the int64 minor units (cents) used for storage and comparison.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept in minor units.
const Scale = 2

var (
	ErrNotPositive = errors.New("amount must be positive")
	ErrTooPrecise  = errors.New("amount has more than 2 decimal places")
	ErrOutOfRange  = errors.New("amount is out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinor converts a major-unit decimal such as 110.5 into 11050.
func ToMinor(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, ErrNotPositive
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, ErrTooPrecise
	}
	if shifted.GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return shifted.IntPart(), nil
}

// Parse parses a major-unit string into minor units.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return ToMinor(d)
}

// FromMinor converts minor units back into a major-unit decimal.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// Format renders minor units with a fixed number of decimals, e.g. "110.50".
func Format(v int64) string {
	return FromMinor(v).StringFixed(Scale)
}
