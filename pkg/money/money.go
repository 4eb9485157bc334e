// Package money provides an exact-arithmetic monetary value type.
//
// Amounts are non-negative decimals carried at the currency's ISO 4217
// default scale. Inputs at a finer scale are rescaled half-up on
// construction. All arithmetic is exact; there is no floating point
// anywhere in this package.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned by operations that combine two Money
	// values of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNegativeResult is returned by Subtract when the result would be
	// below zero. Money values are never negative.
	ErrNegativeResult = errors.New("negative result")

	// ErrNegativeAmount is returned when constructing a Money from a
	// negative input.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrInvalidCurrency is returned when the currency code is not a
	// three-letter uppercase ISO 4217 code.
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Money is an immutable amount in a specific currency.
// The zero value is not valid; use New, Zero or FromString.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money from a decimal amount and currency code, rescaling the
// amount half-up to the currency's default fraction digits.
func New(amount decimal.Decimal, currencyCode string) (Money, error) {
	if !ValidCurrencyCode(currencyCode) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currencyCode)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	// decimal.Round is half away from zero, which is half-up for the
	// non-negative amounts allowed here.
	return Money{
		amount:   amount.Round(FractionDigits(currencyCode)),
		currency: currencyCode,
	}, nil
}

// FromString parses a decimal string into a Money.
func FromString(amount, currencyCode string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return New(d, currencyCode)
}

// Zero returns a zero-valued Money in the given currency.
func Zero(currencyCode string) (Money, error) {
	return New(decimal.Zero, currencyCode)
}

// MustNew is New that panics on error. Intended for constants and tests.
func MustNew(amount string, currencyCode string) Money {
	m, err := FromString(amount, currencyCode)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount at the currency's scale.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO 4217 currency code.
func (m Money) Currency() string { return m.currency }

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.assertSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m - other, failing with ErrNegativeResult if the result
// would be below zero.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.assertSameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m.amount, other.amount)
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Mul returns m multiplied by a plain decimal factor, rescaled half-up to the
// currency's default fraction digits.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	product := m.amount.Mul(factor)
	if product.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s * %s", ErrNegativeAmount, m.amount, factor)
	}
	return Money{amount: product.Round(FractionDigits(m.currency)), currency: m.currency}, nil
}

// Cmp compares m with other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.assertSameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both values have the same currency and the same
// scaled amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// String renders the value as "CUR 12.34" at the currency's scale.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, m.amount.StringFixed(FractionDigits(m.currency)))
}

func (m Money) assertSameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
