// README: Common money value object used across modules.
package types

import (
	"fmt"
	"math"
)

// DefaultCurrency is the only currency the campus service charges in.
const DefaultCurrency = "USD"

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64
	Currency string
}

// USD builds a Money value from cents.
func USD(cents int64) Money {
	return Money{Amount: cents, Currency: DefaultCurrency}
}

// MoneyFromDecimal converts a decimal major-unit amount (2.5 -> 250 cents),
// rounding half away from zero at the cent.
func MoneyFromDecimal(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}, fmt.Errorf("amount %v is not a number", v)
	}
	if math.Abs(v) > float64(math.MaxInt64/100) {
		return Money{}, fmt.Errorf("amount %v out of range", v)
	}
	return USD(int64(math.Round(v * 100))), nil
}

// Decimal returns the amount in major units, suitable for JSON output.
func (m Money) Decimal() float64 {
	return float64(m.Amount) / 100
}

func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) String() string {
	cur := m.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, cur)
}
