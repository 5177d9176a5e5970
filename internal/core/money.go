// Package core holds the ledger's entity model: houses, monthly
// obligations, transactions and the value types they share.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in whole rupiah. The currency has no minor unit in
// practice, so amounts are plain integers end to end and never touch
// floating point.
type Money struct {
	Rupiah int64
}

var ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)

func (m Money) Validate() error {
	if m.Rupiah <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(other Money) Money {
	return Money{Rupiah: m.Rupiah + other.Rupiah}
}

// ParseAmount converts a user-supplied amount string to rupiah. Thousand
// separators ("70.000", "70,000") are tolerated and stripped; signs,
// decimals beyond separators, and non-positive values are rejected.
//
// Examples:
//
//	ParseAmount("70000")  -> 70000, nil
//	ParseAmount("70.000") -> 70000, nil
//	ParseAmount("-500")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',':
			// separator, dropped
		default:
			return 0, ErrInvalidAmount
		}
	}
	if b.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
