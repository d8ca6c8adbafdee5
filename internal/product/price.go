package product

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParsePrice parses a NUMERIC rendered as text.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}

// LineTotal is price × quantity, exact.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
