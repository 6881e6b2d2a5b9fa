package orders

import (
	"errors"
	"fmt"
)

// Machine-readable error codes returned to API callers.
const (
	CodeEmptyOrder         = "EMPTY_ORDER"
	CodeInvalidQuantity    = "INVALID_QUANTITY"
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeTooManyItems       = "TOO_MANY_ITEMS"
)

// CodedError is implemented by every workflow validation error.
type CodedError interface {
	error
	Code() string
}

var (
	// ErrStatusConflict means the order status changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrDuplicateRequest means the idempotency key was already used.
	ErrDuplicateRequest = errors.New("idempotency key already used")
)

type EmptyOrderError struct{}

func (e *EmptyOrderError) Error() string { return "No items in order" }
func (e *EmptyOrderError) Code() string  { return CodeEmptyOrder }

type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("Quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}
func (e *InvalidQuantityError) Code() string { return CodeInvalidQuantity }

// ProductUnavailableError means the product does not exist or is not Active.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("Product not found or inactive: %s", e.ProductID)
}
func (e *ProductUnavailableError) Code() string { return CodeProductUnavailable }

// InsufficientStockError carries the product and what was available when the check failed.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}
func (e *InsufficientStockError) Code() string { return CodeInsufficientStock }

type OrderNotFoundError struct {
	OrderID string
}

func (e *OrderNotFoundError) Error() string { return fmt.Sprintf("Order not found: %s", e.OrderID) }
func (e *OrderNotFoundError) Code() string  { return CodeOrderNotFound }

type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string { return fmt.Sprintf("Invalid status: %q", e.Status) }
func (e *InvalidStatusError) Code() string  { return CodeInvalidStatus }

// TooManyItemsError means the order has more distinct products than one
// DynamoDB transaction can carry.
type TooManyItemsError struct {
	Lines int
	Max   int
}

func (e *TooManyItemsError) Error() string {
	return fmt.Sprintf("Too many products in one order: %d, at most %d", e.Lines, e.Max)
}
func (e *TooManyItemsError) Code() string { return CodeTooManyItems }
