package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a decimal price that may be absent (unknown), the zero value is absent.
type Price struct {
	value decimal.NullDecimal
}

func NewPrice(d decimal.Decimal) Price {
	return Price{value: decimal.NullDecimal{Decimal: d, Valid: true}}
}

// MustPrice parses a price and panics if it is malformed, it is meant for literals.
func MustPrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePrice parses a plain decimal string, the empty string is the absent price.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return NewPrice(d), nil
}

func (p Price) Valid() bool {
	return p.value.Valid
}

func (p Price) Decimal() decimal.Decimal {
	return p.value.Decimal
}

// Equal compares normalized values, so "10", "10.0" and "10.00" are all equal.
// Absent only equals absent.
func (p Price) Equal(other Price) bool {
	if p.value.Valid != other.value.Valid {
		return false
	}
	if !p.value.Valid {
		return true
	}
	return p.value.Decimal.Equal(other.value.Decimal)
}

// String renders the canonical form without trailing zeros, absent renders as "".
func (p Price) String() string {
	if !p.value.Valid {
		return ""
	}
	return p.value.Decimal.String()
}

// Fixed renders the price with exactly two decimal places, the way the remote
// platform displays prices. Absent renders as "".
func (p Price) Fixed() string {
	if !p.value.Valid {
		return ""
	}
	return p.value.Decimal.StringFixed(2)
}
