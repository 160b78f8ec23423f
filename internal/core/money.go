// Package core holds the ledger engine: civil dates, recurrence expansion,
// and period aggregation. It has no dependency on storage or transport.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values go out as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundMoney rounds a monetary value to two decimal places, half away from
// zero. Every computed total passes through here exactly once, at the point
// of output, so repeated runs never drift.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ParseAmount parses a positive decimal amount. It accepts both dot and comma
// decimal separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	v, err := ParseSignedAmount(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if v.Sign() <= 0 {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return v, nil
}

// ParseSignedAmount parses a decimal amount that may be negative, such as a
// receipt item's total price.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return v, nil
}
