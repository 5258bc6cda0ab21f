/*
Package generic provides the domain-agnostic analytics primitives.

PURPOSE:
  This package contains the value types and reducers shared by every
  marketplace report. Whether a report counts churned customers, churned
  licenses or projects recurring revenue, it is built on the same money,
  date and churn primitives defined here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Currency: ISO 4217 currency code
  - Money: An exact decimal amount tagged with its currency

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for amounts
  2. Explicit conversion: Money never changes currency implicitly
  3. Fail fast: Arithmetic on mismatched currencies is an error

USAGE:
  price := generic.NewMoney("12.50", generic.USD)
  total, err := price.Add(generic.NewMoney("2.50", generic.USD))

SEE ALSO:
  - time.go: Date (year-month-day) type
  - period.go: DateRange
  - split.go: Rounding-safe amount splitting
  - churn.go: Generic churn reducer
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is an ISO 4217 currency code, e.g. "USD".
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// NewMoney parses value as a decimal. It panics on malformed input and is
// meant for constants and tests.
func NewMoney(value string, currency Currency) Money {
	return Money{Amount: decimal.RequireFromString(value), Currency: currency}
}

func NewMoneyFromInt(value int64, currency Currency) Money {
	return Money{Amount: decimal.NewFromInt(value), Currency: currency}
}

func ZeroMoney(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Zero() Money                        { return Money{Amount: decimal.Zero, Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money        { return Money{Amount: m.Amount.Mul(s), Currency: m.Currency} }
func (m Money) Neg() Money                         { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }
func (m Money) Round(places int32) Money           { return Money{Amount: m.Amount.Round(places), Currency: m.Currency} }
func (m Money) Truncate(places int32) Money        { return Money{Amount: m.Amount.Truncate(places), Currency: m.Currency} }
func (m Money) IsZero() bool                       { return m.Amount.IsZero() }
func (m Money) IsNegative() bool                   { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool                   { return m.Amount.IsPositive() }
func (m Money) WithAmount(d decimal.Decimal) Money { return Money{Amount: d, Currency: m.Currency} }

// Add returns m+b. Both values must carry the same currency.
func (m Money) Add(b Money) (Money, error) {
	if m.Currency != b.Currency {
		return Money{}, &CurrencyMismatchError{Op: "add", Left: m.Currency, Right: b.Currency}
	}
	return Money{Amount: m.Amount.Add(b.Amount), Currency: m.Currency}, nil
}

// Sub returns m-b. Both values must carry the same currency.
func (m Money) Sub(b Money) (Money, error) {
	if m.Currency != b.Currency {
		return Money{}, &CurrencyMismatchError{Op: "sub", Left: m.Currency, Right: b.Currency}
	}
	return Money{Amount: m.Amount.Sub(b.Amount), Currency: m.Currency}, nil
}

// Equal compares amount and currency. 1.0 USD equals 1.00 USD.
func (m Money) Equal(b Money) bool {
	return m.Currency == b.Currency && m.Amount.Equal(b.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// Sum adds all values. An empty list yields zero in the given currency.
func Sum(currency Currency, values ...Money) (Money, error) {
	total := ZeroMoney(currency)
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
