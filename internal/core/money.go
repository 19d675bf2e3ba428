// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Input strings are parsed as decimals so
// no binary floating point is involved between the user and the ledger.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Inputs outside these bounds cannot name a representable cent amount and
// would make rounding rescale to an arbitrarily large integer.
const (
	maxAmountLen      = 64
	maxAmountExponent = 20
)

// parseDecimal parses s after normalising a lone decimal comma.
func parseDecimal(s string) (decimal.Decimal, bool) {
	if len(s) > maxAmountLen {
		return decimal.Decimal{}, false
	}
	// A single comma is a decimal separator; anything else is rejected by the parser.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if e := d.Exponent(); e > maxAmountExponent || e < -maxAmountExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseAmount converts a decimal string to a strictly positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half away from zero to two decimal places. Values that do not
// parse, carry an exponent beyond ±20, or are zero or negative after
// rounding are rejected with a *ValidationError.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("-5")     -> error
//	ParseAmount("abc")    -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	d, ok := parseDecimal(s)
	if !ok {
		return Money{}, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() || !cents.BigInt().IsInt64() {
		return Money{}, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Units returns the amount as a float64 for display purposes only.
// Use cents for calculations.
func (m Money) Units() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// MustParseAmount is ParseAmount for constants; it panics on invalid input.
func MustParseAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid amount %q: %v", s, err))
	}
	return m
}

// ParseBalance parses an opening balance. Unlike ParseAmount it accepts
// zero and negative values.
func ParseBalance(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, nil
	}
	d, ok := parseDecimal(s)
	if !ok {
		return Money{}, &ValidationError{Field: "balance", Err: ErrInvalidAmount}
	}
	cents := d.Round(2).Shift(2)
	if !cents.BigInt().IsInt64() {
		return Money{}, &ValidationError{Field: "balance", Err: ErrInvalidAmount}
	}
	return Money{Cents: cents.IntPart()}, nil
}
