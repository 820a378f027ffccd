package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary amount with cent precision. The tracker is
// single-currency; formatting and locale concerns live in the clients.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates a Money value from a decimal amount.
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromFloat creates Money from a float64 amount.
// Note: Use with caution due to floating point precision issues.
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString creates Money from a decimal string.
func NewMoneyFromString(amount string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount: %w", err)
	}
	return Money{amount: dec}, nil
}

// MustMoneyFromString creates Money and panics on error (for constants/tests).
func MustMoneyFromString(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns a zero Money value.
func ZeroMoney() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// String returns the amount fixed to 2 decimal places.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// IsZero checks if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive checks if the amount is positive.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative checks if the amount is negative.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Equal checks if two Money values are equal.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// Cmp returns -1, 0, or 1 comparing this Money with other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// SubFloor returns m - other, clamped at zero.
func (m Money) SubFloor(other Money) Money {
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return ZeroMoney()
	}
	return Money{amount: result}
}

// Mul multiplies by a decimal factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// Div divides by a decimal factor.
func (m Money) Div(factor decimal.Decimal) (Money, error) {
	if factor.IsZero() {
		return Money{}, fmt.Errorf("division by zero")
	}
	return Money{amount: m.amount.Div(factor)}, nil
}

// RoundCents rounds to 2 decimal places, half away from zero.
func (m Money) RoundCents() Money {
	return Money{amount: m.amount.Round(2)}
}

// ToFloat64 converts to float64 (use with caution for precision).
func (m Money) ToFloat64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.amount.StringFixed(2))
}

// UnmarshalJSON accepts either a JSON string or number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Fall back to a bare JSON number.
		var f json.Number
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid money value: %s", string(data))
		}
		s = f.String()
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	m.amount = dec
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Money{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return m.scanFromString(string(v))
	case string:
		return m.scanFromString(v)
	case float64:
		m.amount = decimal.NewFromFloat(v)
		return nil
	case int64:
		m.amount = decimal.NewFromInt(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
}

// Value implements driver.Valuer; stored as a plain decimal string.
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

func (m *Money) scanFromString(s string) error {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid money format: %w", err)
	}
	m.amount = amount
	return nil
}
