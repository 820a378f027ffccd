package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Rate represents an interest or discount rate as a fraction in [0, 1].
// An annual rate of 24% is Rate 0.24; its monthly equivalent is 0.02.
type Rate struct {
	fraction decimal.Decimal
}

var twelve = decimal.NewFromInt(12)

// NewRate creates a Rate, validating the [0, 1] range.
func NewRate(fraction decimal.Decimal) (Rate, error) {
	if fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return Rate{}, fmt.Errorf("rate must be between 0 and 1, got %s", fraction)
	}
	return Rate{fraction: fraction}, nil
}

// NewRateFromFloat creates a Rate from a float64 fraction.
func NewRateFromFloat(fraction float64) (Rate, error) {
	return NewRate(decimal.NewFromFloat(fraction))
}

// MustRateFromFloat creates a Rate and panics on error (for constants/tests).
func MustRateFromFloat(fraction float64) Rate {
	r, err := NewRateFromFloat(fraction)
	if err != nil {
		panic(err)
	}
	return r
}

// ZeroRate returns a zero rate.
func ZeroRate() Rate {
	return Rate{fraction: decimal.Zero}
}

// Fraction returns the rate as a decimal fraction.
func (r Rate) Fraction() decimal.Decimal {
	return r.fraction
}

// Monthly converts an annual rate to its monthly equivalent (simple
// division, matching how the tracker quotes card rates).
func (r Rate) Monthly() Rate {
	return Rate{fraction: r.fraction.Div(twelve)}
}

// IsZero checks if the rate is zero.
func (r Rate) IsZero() bool {
	return r.fraction.IsZero()
}

// Equal checks if two rates are equal.
func (r Rate) Equal(other Rate) bool {
	return r.fraction.Equal(other.fraction)
}

// ApplyTo returns amount x rate, unrounded.
func (r Rate) ApplyTo(m Money) Money {
	return m.Mul(r.fraction)
}

// String returns the fraction as a decimal string.
func (r Rate) String() string {
	return r.fraction.String()
}

// MarshalJSON encodes the fraction as a JSON number string.
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fraction.String())
}

// UnmarshalJSON accepts either a JSON string or number.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid rate value: %s", string(data))
		}
		s = n.String()
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}

	rate, err := NewRate(dec)
	if err != nil {
		return err
	}

	*r = rate
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (r *Rate) Scan(value interface{}) error {
	if value == nil {
		*r = Rate{}
		return nil
	}

	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case float64:
		rate, err := NewRateFromFloat(v)
		if err != nil {
			return err
		}
		*r = rate
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Rate", value)
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid rate format: %w", err)
	}

	rate, err := NewRate(dec)
	if err != nil {
		return err
	}
	*r = rate
	return nil
}

// Value implements driver.Valuer.
func (r Rate) Value() (driver.Value, error) {
	return r.fraction.String(), nil
}
