package ledger

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an arbitrary-precision, sign-agnostic monetary value. The zero value is 0.
// It encodes as a JSON number and decodes from either a number or a quoted string,
// so wire precision is never routed through float64.
type Amount struct {
	d decimal.Decimal
}

// ParseAmount parses a decimal string such as "100.00" or "-3.5".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustAmount is ParseAmount for literals; it panics on malformed input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String keeps the scale the value was parsed with ("100.00" stays "100.00").
func (a Amount) String() string {
	if exp := a.d.Exponent(); exp < 0 {
		return a.d.StringFixed(-exp)
	}
	return a.d.String()
}

// Cmp compares numerically: -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports numeric equality, ignoring scale (1.0 == 1.00).
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

func (a Amount) MarshalJSON() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	b = bytes.Trim(b, `"`)
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
