package orders

import (
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// Order statuses
const (
	StatusNew        = "New"
	StatusProcessing = "Processing"
	StatusShipped    = "Shipped"
	StatusCancelled  = "Cancelled"
)

// Statuses lists every order status in display order.
var Statuses = []string{StatusNew, StatusProcessing, StatusShipped, StatusCancelled}

// ValidStatus reports whether s is one of the four order statuses.
func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID         string        `dynamodbav:"order_id" json:"id"` // PK
	CustomerName    string        `dynamodbav:"customer_name" json:"customerName"`
	Email           string        `dynamodbav:"email" json:"email"`
	ContactNumber   string        `dynamodbav:"contact_number" json:"contactNumber"`
	ShippingAddress string        `dynamodbav:"shipping_address" json:"shippingAddress"`
	Items           []LineItem    `dynamodbav:"items" json:"items"`
	Subtotal        pricing.Money `dynamodbav:"subtotal" json:"subtotal"`
	Tax             pricing.Money `dynamodbav:"tax" json:"tax"`
	Total           pricing.Money `dynamodbav:"total" json:"total"`
	Status          string        `dynamodbav:"status" json:"status"` // New | Processing | Shipped | Cancelled
	CreatedAt       time.Time     `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `dynamodbav:"updated_at" json:"updatedAt"`
}

// LineItem is a snapshot of a product at order time. It never changes after creation.
type LineItem struct {
	ProductID   string        `dynamodbav:"product_id" json:"productId"`
	ProductName string        `dynamodbav:"product_name" json:"productName"`
	Quantity    int           `dynamodbav:"quantity" json:"quantity"`
	UnitPrice   pricing.Money `dynamodbav:"unit_price" json:"unitPrice"`
	LineTotal   pricing.Money `dynamodbav:"line_total" json:"lineTotal"`
}

// Customer is the contact and shipping information supplied at checkout.
type Customer struct {
	Name            string
	Email           string
	ContactNumber   string
	ShippingAddress string
}

// ItemRequest asks for quantity units of a product.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// ListFilter narrows the admin order listing. Zero values match everything.
type ListFilter struct {
	Status string
	From   time.Time // inclusive
	To     time.Time // inclusive
}
