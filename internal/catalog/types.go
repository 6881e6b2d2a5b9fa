package catalog

import (
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// Product statuses
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// DefaultLowStockThreshold flags products for restocking.
const DefaultLowStockThreshold = 10

// Product represents the item stored in the Products DynamoDB table.
type Product struct {
	ProductID   string        `dynamodbav:"product_id" json:"id"` // PK
	Name        string        `dynamodbav:"name" json:"name"`
	Description string        `dynamodbav:"description" json:"description"`
	Price       pricing.Money `dynamodbav:"price" json:"price"`
	Stock       int           `dynamodbav:"stock" json:"stock"`
	Category    string        `dynamodbav:"category" json:"category"`
	Status      string        `dynamodbav:"status" json:"status"` // Active | Inactive
	ImageURL    string        `dynamodbav:"image_url,omitempty" json:"imageUrl,omitempty"`
	CreatedAt   time.Time     `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `dynamodbav:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the product can be ordered.
func (p *Product) IsActive() bool { return p.Status == StatusActive }

// ValidStatus reports whether s is a known product status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}

// Filter narrows a product listing. Zero values match everything.
type Filter struct {
	Status   string
	Category string
	Search   string // case-insensitive substring of name, description or category
}

// StockChange is a signed stock adjustment for one product.
type StockChange struct {
	ProductID   string
	ProductName string
	Delta       int
}
