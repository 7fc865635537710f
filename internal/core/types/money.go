// Package types provides common type aliases and monetary helpers.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors in cost and
// installment arithmetic.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ZeroMoney returns the zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// Cents truncates a Money value to two decimal places without rounding up.
// Installment math relies on truncation so the remainder is never negative.
func Cents(m Money) Money {
	return m.Truncate(2)
}

// BaseQty is a stock quantity expressed in a product's base unit.
// All inventory arithmetic happens in base units; sellable unit quantities
// are converted via the unit's fixed factor before reaching storage.
type BaseQty = int64
