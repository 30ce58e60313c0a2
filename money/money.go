// Package money represents BRL amounts as integer cents so that balance
// arithmetic and cost comparisons stay exact.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	cents int64
}

func New(amount decimal.Decimal) Money {
	return Money{cents: decimalToCents(amount)}
}

func FromCents(cents int64) Money {
	return Money{cents: cents}
}

func FromFloat(amount float64) Money {
	return New(decimal.NewFromFloat(amount))
}

func Zero() Money {
	return Money{}
}

func NewFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount format: %w", err)
	}
	return New(d), nil
}

func (m Money) Cents() int64 {
	return m.cents
}

func (m Money) Amount() decimal.Decimal {
	return centsToDecimal(m.cents)
}

func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) Sub(other Money) Money {
	return Money{cents: m.cents - other.cents}
}

// Mul multiplies the amount by a rate, rounding to the nearest cent.
func (m Money) Mul(rate decimal.Decimal) Money {
	return New(centsToDecimal(m.cents).Mul(rate))
}

func (m Money) IsNegative() bool {
	return m.cents < 0
}

func (m Money) IsZero() bool {
	return m.cents == 0
}

func (m Money) Cmp(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.cents >= other.cents
}

func (m Money) LessThan(other Money) bool {
	return m.cents < other.cents
}

func (m Money) String() string {
	return m.FormatWithSymbol()
}

func (m Money) FormatWithSymbol() string {
	return fmt.Sprintf("R$ %s", centsToDecimalString(m.cents))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(centsToDecimal(m.cents))
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var valueStr string
	if err := json.Unmarshal(data, &valueStr); err == nil {
		valueStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(valueStr), "R$"))
		amount, err := decimal.NewFromString(valueStr)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		m.cents = decimalToCents(amount)
		return nil
	}

	var amount decimal.Decimal
	if err := json.Unmarshal(data, &amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.cents = decimalToCents(amount)
	return nil
}

func decimalToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func centsToDecimalString(cents int64) string {
	neg := ""
	if cents < 0 {
		neg = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", neg, cents/100, cents%100)
}
