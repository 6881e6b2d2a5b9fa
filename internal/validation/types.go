package validation

import "github.com/imrishuroy/go-storefront-orders/internal/pricing"

// OrderItem is one requested line. Quantity is checked by the order workflow
// so that a bad quantity carries its INVALID_QUANTITY code.
type OrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest is the payload for POST /api/orders. An empty item list
// is left to the workflow, which reports EMPTY_ORDER.
type CreateOrderRequest struct {
	CustomerName    string      `json:"customerName" validate:"required,max=100"`
	Email           string      `json:"email" validate:"required,email"`
	ContactNumber   string      `json:"contactNumber" validate:"required,max=20"`
	ShippingAddress string      `json:"shippingAddress" validate:"required,max=500"`
	Items           []OrderItem `json:"items" validate:"dive"`
}

// UpdateStatusRequest is the payload for PATCH /api/admin/orders/:id/status.
// Unknown values reach the workflow, which reports INVALID_STATUS.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ProductRequest is the payload for admin product create and update.
type ProductRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description" validate:"required,max=2000"`
	Price       pricing.Money `json:"price" validate:"gte=0"`
	Stock       int           `json:"stock" validate:"gte=0"`
	Category    string        `json:"category" validate:"required,max=100"`
	Status      string        `json:"status" validate:"omitempty,oneof=Active Inactive"`
	ImageURL    string        `json:"imageUrl" validate:"omitempty,max=500"`
}

// StockAdjustRequest adds Delta (non-zero, may be negative) to a product's stock.
type StockAdjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// CartLine is one line of a cart to quote.
type CartLine struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// CartQuoteRequest is the payload for POST /api/cart/quote.
type CartQuoteRequest struct {
	Items []CartLine `json:"items" validate:"required,dive"`
}

// Pagination query parameters shared by listings.
type Pagination struct {
	Page  int `form:"page" validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1"`
}

// ListProductsQuery filters product listings.
type ListProductsQuery struct {
	Pagination
	Search   string `form:"search" validate:"max=100"`
	Category string `form:"category"`
	Status   string `form:"status" validate:"omitempty,oneof=Active Inactive"`
}

// ListOrdersQuery filters the admin order listing.
type ListOrdersQuery struct {
	Pagination
	Status    string `form:"status" validate:"omitempty,oneof=New Processing Shipped Cancelled"`
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// LowStockQuery sets the low-stock threshold.
type LowStockQuery struct {
	Threshold *int `form:"threshold" validate:"omitempty,min=0"`
}
