// Package pricing holds the money type and the tax calculation shared by
// orders and the cart.
package pricing

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. It is encoded as a JSON number and as a
// DynamoDB N attribute.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney parses s, e.g. "19.99".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustMoney is NewMoney that panics on malformed input. Use for constants and tests.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromInt returns a whole amount.
func FromInt(v int64) Money { return Money{d: decimal.NewFromInt(v)} }

// FromDecimal wraps d.
func FromDecimal(d decimal.Decimal) Money { return Money{d: d} }

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Times multiplies by a quantity.
func (m Money) Times(qty int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))} }

// Scale multiplies by a rate.
func (m Money) Scale(rate decimal.Decimal) Money { return Money{d: m.d.Mul(rate)} }

func (m Money) Cmp(o Money) int     { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool  { return m.d.Equal(o.d) }
func (m Money) IsNegative() bool    { return m.d.IsNegative() }
func (m Money) IsZero() bool        { return m.d.IsZero() }
func (m Money) String() string      { return m.d.String() }
func (m Money) Float64() float64    { f, _ := m.d.Float64(); return f }
func (m Money) StringFixed() string { return m.d.StringFixed(2) }

// MarshalJSON encodes m as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.d.UnmarshalJSON(b)
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.d.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		m.d = decimal.Zero
		return nil
	default:
		return fmt.Errorf("unsupported attribute type %T for money", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse money attribute: %w", err)
	}
	m.d = d
	return nil
}
