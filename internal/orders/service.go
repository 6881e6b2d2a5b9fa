package orders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/events"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// ProductReader is the slice of the catalog the workflow reads.
type ProductReader interface {
	FindActiveProduct(ctx context.Context, productID string) (*catalog.Product, error)
	FindByID(ctx context.Context, productID string) (*catalog.Product, error)
}

// Ledger persists orders together with their stock effects.
type Ledger interface {
	Create(ctx context.Context, order *Order, changes []catalog.StockChange, idempotencyKey string) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ApplyStatus(ctx context.Context, order *Order, next string, changes []catalog.StockChange) (*Order, error)
}

// PlaceOrderInput is a checkout request.
type PlaceOrderInput struct {
	Customer       Customer
	Items          []ItemRequest
	IdempotencyKey string
	RequestID      string
}

// Service places orders and moves them between statuses, keeping product
// stock in step. Every check runs before anything is written.
type Service struct {
	products  ProductReader
	ledger    Ledger
	calc      *pricing.Calculator
	publisher events.Publisher
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewService wires the workflow. A nil publisher drops events.
func NewService(products ProductReader, ledger Ledger, calc *pricing.Calculator, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		products:  products,
		ledger:    ledger,
		calc:      calc,
		publisher: publisher,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// PlaceOrder validates every line against the live catalog, snapshots name and
// price, computes totals and commits the order with all stock decrements.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, &EmptyOrderError{}
	}

	// merge repeated products; DynamoDB rejects two writes to one item per transaction
	var ids []string
	qty := map[string]int{}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if it.Quantity > math.MaxInt-qty[it.ProductID] {
			// the merged quantity would wrap negative
			return nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	if len(ids) > MaxOrderLines {
		return nil, &TooManyItemsError{Lines: len(ids), Max: MaxOrderLines}
	}

	lines := make([]LineItem, 0, len(ids))
	changes := make([]catalog.StockChange, 0, len(ids))
	subtotal := pricing.Zero
	for _, id := range ids {
		p, err := s.products.FindActiveProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find product %s: %w", id, err)
		}
		if p == nil {
			return nil, &ProductUnavailableError{ProductID: id}
		}
		q := qty[id]
		if q > p.Stock {
			return nil, &InsufficientStockError{ProductID: id, ProductName: p.Name, Available: p.Stock, Requested: q}
		}

		lineTotal := s.calc.LineTotal(p.Price, q)
		lines = append(lines, LineItem{
			ProductID:   p.ProductID,
			ProductName: p.Name,
			Quantity:    q,
			UnitPrice:   p.Price,
			LineTotal:   lineTotal,
		})
		changes = append(changes, catalog.StockChange{ProductID: p.ProductID, ProductName: p.Name, Delta: -q})
		subtotal = subtotal.Add(lineTotal)
	}

	totals := s.calc.Quote(subtotal)
	now := s.nowFunc().UTC()
	order := &Order{
		OrderID:         uuid.NewString(),
		CustomerName:    in.Customer.Name,
		Email:           in.Customer.Email,
		ContactNumber:   in.Customer.ContactNumber,
		ShippingAddress: in.Customer.ShippingAddress,
		Items:           lines,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Status:          StatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.ledger.Create(ctx, order, changes, in.IdempotencyKey); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.Int("lines", len(lines)),
		zap.String("total", order.Total.String()),
		zap.String("request_id", in.RequestID))

	s.publish(ctx, events.TypeOrderCreated, order, "", in.RequestID)
	return order, nil
}

// SetStatus moves an order to next. Entering Cancelled gives stock back;
// leaving it takes stock again, but only if every line can still be covered.
func (s *Service) SetStatus(ctx context.Context, orderID, next string) (*Order, error) {
	order, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if order == nil {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}
	if !ValidStatus(next) {
		return nil, &InvalidStatusError{Status: next}
	}

	previous := order.Status
	var changes []catalog.StockChange
	switch {
	case next == StatusCancelled && previous != StatusCancelled:
		changes, err = s.restock(ctx, order)
	case previous == StatusCancelled && next != StatusCancelled:
		changes, err = s.reserve(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.ledger.ApplyStatus(ctx, order, next, changes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", previous),
		zap.String("to", next),
		zap.Int("stock_changes", len(changes)))

	if previous != next {
		s.publish(ctx, events.TypeOrderStatusChanged, updated, previous, "")
	}
	return updated, nil
}

// restock returns each line's quantity. Products that no longer exist are skipped.
func (s *Service) restock(ctx context.Context, order *Order) ([]catalog.StockChange, error) {
	var changes []catalog.StockChange
	for _, line := range mergeLines(order.Items) {
		p, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("find product %s: %w", line.ProductID, err)
		}
		if p == nil {
			s.logger.Warn("restock skipped, product missing",
				zap.String("order_id", order.OrderID),
				zap.String("product_id", line.ProductID))
			continue
		}
		changes = append(changes, catalog.StockChange{ProductID: line.ProductID, ProductName: p.Name, Delta: line.Quantity})
	}
	return changes, nil
}

// reserve checks every line before returning any decrement.
func (s *Service) reserve(ctx context.Context, order *Order) ([]catalog.StockChange, error) {
	lines := mergeLines(order.Items)
	changes := make([]catalog.StockChange, 0, len(lines))
	for _, line := range lines {
		p, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("find product %s: %w", line.ProductID, err)
		}
		if p == nil {
			return nil, &InsufficientStockError{ProductID: line.ProductID, ProductName: line.ProductName, Available: 0, Requested: line.Quantity}
		}
		if p.Stock < line.Quantity {
			return nil, &InsufficientStockError{ProductID: line.ProductID, ProductName: p.Name, Available: p.Stock, Requested: line.Quantity}
		}
		changes = append(changes, catalog.StockChange{ProductID: line.ProductID, ProductName: p.Name, Delta: -line.Quantity})
	}
	return changes, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *Order, previous, requestID string) {
	items := make([]events.Item, 0, len(order.Items))
	for _, l := range order.Items {
		items = append(items, events.Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	evt := events.NewOrderEvent(eventType, order.OrderID, order.Status, order.Total, items)
	evt.PreviousStatus = previous
	evt.RequestID = requestID

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("publish order event failed",
			zap.String("order_id", order.OrderID),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

// mergeLines sums quantities per product, keeping first-seen order. Orders
// created here never repeat a product, but stored data may predate that.
func mergeLines(items []LineItem) []LineItem {
	var out []LineItem
	index := map[string]int{}
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
