// Package core provides the budget domain model: monetary amounts,
// limit periods and the proration rules that derive a daily allowance
// from the remaining monthly budget.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrEmptyMerchant    = errors.New("empty merchant")
	ErrNoDaysRemaining  = errors.New("no days remaining in month")
	ErrInvalidTimespan  = errors.New("invalid limit timespan")
	ErrLimitNotFound    = errors.New("limit not found")
	ErrLimitExists      = errors.New("limit period already exists")
)

// AmountScale is the decimal scale used for stored monetary values and for
// the proration division. Two digits covers the minor unit of every currency
// this system is configured with.
const AmountScale = 2

// Amount pairs a decimal magnitude with a currency code.
//
// Arithmetic between two Amounts is only defined for equal currencies.
// Mixing currencies is a programming error, not a recoverable condition,
// so Add and Sub panic on mismatch. Callers that accept external input
// must validate currency before doing arithmetic (see SameCurrency).
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// NewAmount creates an Amount from a decimal value and currency code.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value, Currency: currency}
}

// ParseAmount parses a decimal string (dot or comma separator) into an Amount.
func ParseAmount(s, currency string) (Amount, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{Value: value, Currency: currency}, nil
}

// ZeroAmount returns a zero Amount in the given currency.
func ZeroAmount(currency string) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

// SameCurrency reports whether both amounts carry the same currency code.
func (a Amount) SameCurrency(b Amount) bool {
	return a.Currency == b.Currency
}

// Add returns a + b. Panics if the currencies differ.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency}
}

// Sub returns a - b. Panics if the currencies differ.
func (a Amount) Sub(b Amount) Amount {
	a.mustMatch(b)
	return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency}
}

// DivDays splits the amount evenly across days, rounding half-up to
// AmountScale. This is the single rounding policy used by proration; the
// bounded remainder it leaves behind lands on the final day of the month.
func (a Amount) DivDays(days int) Amount {
	return Amount{
		Value:    a.Value.DivRound(decimal.NewFromInt(int64(days)), AmountScale),
		Currency: a.Currency,
	}
}

// WithinScale reports whether the amount carries no precision beyond
// AmountScale. Storage keeps cents, so sub-cent values are rejected at the
// boundary instead of silently rounded.
func (a Amount) WithinScale() bool {
	return a.Value.Shift(AmountScale).IsInteger()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Value.IsPositive()
}

// Validate returns ErrInvalidAmount unless the amount is positive and carries
// a currency code.
func (a Amount) Validate() error {
	if a.Currency == "" || !a.Value.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount for notification texts, e.g. "102.76 EUR".
func (a Amount) String() string {
	return a.Value.StringFixed(AmountScale) + " " + a.Currency
}

func (a Amount) mustMatch(b Amount) {
	if a.Currency != b.Currency {
		panic(fmt.Sprintf("amount currency mismatch: %s vs %s", a.Currency, b.Currency))
	}
}
