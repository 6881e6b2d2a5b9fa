package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is 8%.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Totals is the priced summary of a set of lines.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// Calculator applies a fixed tax rate. It is configured once at start-up.
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator returns a Calculator for rate. Negative rates are rejected.
func NewCalculator(rate decimal.Decimal) (*Calculator, error) {
	if rate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative, got %s", rate)
	}
	return &Calculator{rate: rate}, nil
}

func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// LineTotal is unitPrice * qty.
func (c *Calculator) LineTotal(unitPrice Money, qty int) Money {
	return unitPrice.Times(qty)
}

// Quote computes tax and total for subtotal. No rounding is applied.
func (c *Calculator) Quote(subtotal Money) Totals {
	tax := subtotal.Scale(c.rate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
