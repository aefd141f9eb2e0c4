/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Calendar dates, monthly periods, money arithmetic and error kinds. None of
  this knows about collaborators or sales; the commission package builds on it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal values with two fractional digits of display precision
  - Rounding: banker's rounding (half to even) at 2 places

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Day granularity: Dates never carry time of day
  3. Typed errors: every failure is a ValidationError or NotFoundError, or an
     infrastructure error wrapped with %w

USAGE:
  amount, err := generic.ParseMoney("3000.00")
  value := generic.RoundMoney(amount.Mul(decimal.RequireFromString("0.4")))

SEE ALSO:
  - time.go: Date and month arithmetic
  - period.go: Monthly windows
  - errors.go: Error kinds
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amounts in a single implicit currency
// =============================================================================

// MoneyPlaces is the display precision for every monetary value.
const MoneyPlaces = 2

// ParseMoney parses a decimal string such as "1234.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// RoundMoney rounds half to even at MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyPlaces)
}

// FormatMoney renders d with exactly MoneyPlaces fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return RoundMoney(d).StringFixedBank(MoneyPlaces)
}

// SumMoney adds up the amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
