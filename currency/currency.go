package currency

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CanonicalScale fixes the smallest representable unit of money: one
// micro-unit of the canonical currency. Everything downstream of Normalize
// operates on int64 multiples of this unit, never on floats.
const CanonicalScale = 1_000_000

var (
	ErrUnknownCurrency   = errors.New("unknown currency code")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrNonPositiveRate   = errors.New("exchange rate must be positive")
)

var scale = decimal.NewFromInt(CanonicalScale)

// Normalize converts an amount in the given currency to canonical
// micro-units, rounding half up. Rounding happens exactly once, here; all
// later ledger and settlement arithmetic is integer-only.
func Normalize(amount decimal.Decimal, code string, table *Table) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, ErrNonPositiveAmount
	}

	rate, ok := table.Rate(code)
	if !ok {
		return 0, ErrUnknownCurrency
	}
	if rate.Sign() <= 0 {
		return 0, ErrNonPositiveRate
	}

	return amount.Mul(rate).Mul(scale).Round(0).IntPart(), nil
}
