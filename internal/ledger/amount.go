// Package ledger implements entities, signed transfers and hash-chained blocks.
//
// Everything in this package is single-threaded: callers that share entities or
// chains between goroutines must serialize access themselves (see
// internal/service for the locking wrapper).
package ledger

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits carried by an Amount.
const AmountDecimals = 2

// Amount is a monetary value in minor units (1.00 == 100).
type Amount int64

// ParseAmount converts a decimal string such as "12.50" into minor units.
// More than AmountDecimals fractional digits is an error, never a rounding.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: parse amount %q: %v", ErrInvalidInput, s, err)
	}
	minor := d.Shift(AmountDecimals)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has more than %d decimals", ErrInvalidInput, s, AmountDecimals)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount %q out of range", ErrInvalidInput, s)
	}
	return Amount(minor.IntPart()), nil
}

// String renders the amount with exactly AmountDecimals fractional digits.
func (a Amount) String() string {
	return decimal.New(int64(a), -AmountDecimals).StringFixed(AmountDecimals)
}

// canonical is the hashing form: base-10 minor units, no separators.
func (a Amount) canonical() string {
	return strconv.FormatInt(int64(a), 10)
}
