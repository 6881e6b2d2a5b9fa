package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/events"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, evt events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

// staleReader reports the stock a product had before a concurrent order took it.
type staleReader struct {
	ProductReader
	stock int
}

func (s staleReader) FindActiveProduct(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := s.ProductReader.FindActiveProduct(ctx, id)
	if p != nil {
		p.Stock = s.stock
	}
	return p, err
}

func newService(t *testing.T, f *fixture, pub events.Publisher) *Service {
	t.Helper()
	calc, err := pricing.NewCalculator(pricing.DefaultTaxRate)
	require.NoError(t, err)
	return NewService(f.products, f.ledger, calc, pub, zap.NewNop())
}

func customer() Customer {
	return Customer{Name: "Ada Lovelace", Email: "ada@example.com", ContactNumber: "555-0100", ShippingAddress: "1 Analytical Way"}
}

func place(t *testing.T, svc *Service, items ...ItemRequest) *Order {
	t.Helper()
	o, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{Customer: customer(), Items: items})
	require.NoError(t, err)
	return o
}

func assertMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	assert.True(t, got.Equal(pricing.MustMoney(want)), "want %s, got %s", want, got)
}

func TestPlaceOrder_TotalsAndStock(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	svc := newService(t, f, pub)
	a := f.product(t, "A", "100", 10)

	o := place(t, svc, ItemRequest{ProductID: a.ProductID, Quantity: 3})

	assert.Equal(t, StatusNew, o.Status)
	assertMoney(t, "300", o.Subtotal)
	assertMoney(t, "24", o.Tax)
	assertMoney(t, "324", o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "A", o.Items[0].ProductName)
	assertMoney(t, "100", o.Items[0].UnitPrice)
	assertMoney(t, "300", o.Items[0].LineTotal)
	assert.Equal(t, "Ada Lovelace", o.CustomerName)
	assert.Equal(t, 7, f.stock(t, a.ProductID))

	stored, err := f.ledger.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assertMoney(t, "324", stored.Total)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderCreated, pub.events[0].Type)
	assert.Equal(t, o.OrderID, pub.events[0].OrderID)
}

func TestPlaceOrder_TotalsAreExact(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	a := f.product(t, "A", "19.99", 10)
	b := f.product(t, "B", "0.10", 10)

	o := place(t, svc,
		ItemRequest{ProductID: a.ProductID, Quantity: 3},
		ItemRequest{ProductID: b.ProductID, Quantity: 7})

	sum := pricing.Zero
	for _, l := range o.Items {
		assert.True(t, l.LineTotal.Equal(l.UnitPrice.Times(l.Quantity)))
		sum = sum.Add(l.LineTotal)
	}
	assert.True(t, o.Subtotal.Equal(sum))
	assertMoney(t, "60.67", o.Subtotal)
	assertMoney(t, "4.8536", o.Tax)
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Subtotal.Scale(pricing.DefaultTaxRate))))
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{Customer: customer()})
	var empty *EmptyOrderError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, CodeEmptyOrder, empty.Code())
	assert.Equal(t, 0, f.fake.Len(ordersTable))
}

func TestPlaceOrder_RejectsOversell(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "Lamp", "20", 3)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: 4}},
	})
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "Lamp", ise.ProductName)
	assert.Equal(t, 3, ise.Available)
	assert.Equal(t, 3, f.stock(t, p.ProductID))
	assert.Equal(t, 0, f.fake.TransactCalls, "rejected before any write")
}

func TestPlaceOrder_ValidatesAllLinesFirst(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	ok := f.product(t, "OK", "1", 5)
	short := f.product(t, "Short", "1", 1)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items: []ItemRequest{
			{ProductID: ok.ProductID, Quantity: 2},
			{ProductID: short.ProductID, Quantity: 2},
		},
	})
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, short.ProductID, ise.ProductID)
	assert.Equal(t, 5, f.stock(t, ok.ProductID))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
}

func TestPlaceOrder_ProductUnavailable(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	inactive := f.product(t, "Old", "1", 5)
	_, err := f.products.ToggleStatus(context.Background(), inactive.ProductID)
	require.NoError(t, err)

	for _, id := range []string{inactive.ProductID, "does-not-exist"} {
		_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
			Customer: customer(),
			Items:    []ItemRequest{{ProductID: id, Quantity: 1}},
		})
		var pue *ProductUnavailableError
		require.True(t, errors.As(err, &pue), "product %s: %v", id, err)
		assert.Equal(t, id, pue.ProductID)
		assert.Equal(t, CodeProductUnavailable, pue.Code())
	}
	assert.Equal(t, 5, f.stock(t, inactive.ProductID))
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "A", "1", 5)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: 0}},
	})
	var iqe *InvalidQuantityError
	require.True(t, errors.As(err, &iqe))
	assert.Equal(t, CodeInvalidQuantity, iqe.Code())
}

func TestPlaceOrder_MergesRepeatedProduct(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "A", "2", 5)

	o := place(t, svc,
		ItemRequest{ProductID: p.ProductID, Quantity: 2},
		ItemRequest{ProductID: p.ProductID, Quantity: 3})
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assertMoney(t, "10", o.Subtotal)
	assert.Equal(t, 0, f.stock(t, p.ProductID))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: 1}, {ProductID: p.ProductID, Quantity: 1}},
	})
	var ise *InsufficientStockError
	assert.True(t, errors.As(err, &ise))
}

func TestPlaceOrder_MergedQuantityAboveStock(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "A", "100", 5)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: 3}, {ProductID: p.ProductID, Quantity: 3}},
	})
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise), "got %v", err)
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, 6, ise.Requested)
	assert.Equal(t, 5, f.stock(t, p.ProductID))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
}

func TestPlaceOrder_MergedQuantityOverflow(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "A", "100", 5)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: math.MaxInt}, {ProductID: p.ProductID, Quantity: math.MaxInt}},
	})
	var iqe *InvalidQuantityError
	require.True(t, errors.As(err, &iqe), "got %v", err)
	assert.Equal(t, CodeInvalidQuantity, iqe.Code())
	assert.Equal(t, 5, f.stock(t, p.ProductID), "stock must not move")
	assert.Equal(t, 0, f.fake.Len(ordersTable))
	assert.Equal(t, 0, f.fake.TransactCalls)
}

func TestPlaceOrder_TooManyProducts(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)

	items := make([]ItemRequest, 0, MaxOrderLines+1)
	for i := 0; i <= MaxOrderLines; i++ {
		items = append(items, ItemRequest{ProductID: fmt.Sprintf("p-%d", i), Quantity: 1})
	}
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{Customer: customer(), Items: items})

	var tme *TooManyItemsError
	require.True(t, errors.As(err, &tme), "got %v", err)
	assert.Equal(t, CodeTooManyItems, tme.Code())
	assert.Equal(t, MaxOrderLines+1, tme.Lines)
	assert.Equal(t, 0, f.fake.TransactCalls)
}

func TestPlaceOrder_ConcurrentOrderTookStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", "5", 2)
	calc, _ := pricing.NewCalculator(pricing.DefaultTaxRate)
	svc := NewService(staleReader{ProductReader: f.products, stock: 10}, f.ledger, calc, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Customer: customer(),
		Items:    []ItemRequest{{ProductID: p.ProductID, Quantity: 4}},
	})
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise), "got %v", err)
	assert.Equal(t, 2, ise.Available, "available comes from the failed guard")
	assert.Equal(t, 2, f.stock(t, p.ProductID))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "A", "5", 10)
	in := PlaceOrderInput{
		Customer:       customer(),
		Items:          []ItemRequest{{ProductID: p.ProductID, Quantity: 1}},
		IdempotencyKey: "checkout-42",
	}

	first, err := svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.PlaceOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, 9, f.stock(t, p.ProductID), "stock taken once")
	assert.Equal(t, 1, f.fake.Len(ordersTable))
	assert.NotNil(t, f.fake.Raw(idempotencyTable, "checkout-42"))
	assert.NotEmpty(t, first.OrderID)
}

func TestPlaceOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, &recordingPublisher{err: errors.New("queue down")})
	p := f.product(t, "A", "5", 10)

	o := place(t, svc, ItemRequest{ProductID: p.ProductID, Quantity: 1})
	assert.NotEmpty(t, o.OrderID)
}

func TestSnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	p := f.product(t, "Mug", "8", 10)
	o := place(t, svc, ItemRequest{ProductID: p.ProductID, Quantity: 1})

	p.Price = pricing.FromInt(12)
	p.Name = "Big Mug"
	_, err := f.products.Update(context.Background(), p)
	require.NoError(t, err)

	stored, err := f.ledger.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assertMoney(t, "8", stored.Items[0].UnitPrice)
	assert.Equal(t, "Mug", stored.Items[0].ProductName)
}

func TestSetStatus_CancelAndUncancel(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	svc := newService(t, f, pub)
	ctx := context.Background()
	a := f.product(t, "A", "100", 10)
	o := place(t, svc, ItemRequest{ProductID: a.ProductID, Quantity: 3})

	cancelled, err := svc.SetStatus(ctx, o.OrderID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, a.ProductID))

	// another order drains stock to 1
	_, err = f.products.AdjustStock(ctx, a.ProductID, -9)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, o.OrderID, StatusNew)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, a.ProductID, ise.ProductID)
	assert.Equal(t, 1, ise.Available)

	stored, _ := f.ledger.Get(ctx, o.OrderID)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Equal(t, 1, f.stock(t, a.ProductID))

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, events.TypeOrderStatusChanged, last.Type)
	assert.Equal(t, StatusNew, last.PreviousStatus)
	assert.Equal(t, StatusCancelled, last.Status)
}

func TestSetStatus_RoundTripRestoresStock(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	ctx := context.Background()
	a := f.product(t, "A", "1", 10)
	b := f.product(t, "B", "2", 4)
	o := place(t, svc,
		ItemRequest{ProductID: a.ProductID, Quantity: 3},
		ItemRequest{ProductID: b.ProductID, Quantity: 4})
	assert.Equal(t, 7, f.stock(t, a.ProductID))
	assert.Equal(t, 0, f.stock(t, b.ProductID))

	_, err := svc.SetStatus(ctx, o.OrderID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, a.ProductID))
	assert.Equal(t, 4, f.stock(t, b.ProductID))

	back, err := svc.SetStatus(ctx, o.OrderID, StatusNew)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, back.Status)
	assert.Equal(t, 7, f.stock(t, a.ProductID))
	assert.Equal(t, 0, f.stock(t, b.ProductID))
}

func TestSetStatus_NoStockEffect(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	svc := newService(t, f, pub)
	ctx := context.Background()
	a := f.product(t, "A", "1", 10)
	o := place(t, svc, ItemRequest{ProductID: a.ProductID, Quantity: 2})

	for _, next := range []string{StatusNew, StatusProcessing, StatusShipped, StatusShipped} {
		got, err := svc.SetStatus(ctx, o.OrderID, next)
		require.NoError(t, err)
		assert.Equal(t, next, got.Status)
		assert.Equal(t, 8, f.stock(t, a.ProductID), "transition to %s", next)
	}
	// created, New->Processing, Processing->Shipped; same-status calls publish nothing
	assert.Len(t, pub.events, 3)

	_, err := svc.SetStatus(ctx, o.OrderID, StatusCancelled)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, o.OrderID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, a.ProductID), "cancelling twice restores once")
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	ctx := context.Background()
	a := f.product(t, "A", "1", 10)
	o := place(t, svc, ItemRequest{ProductID: a.ProductID, Quantity: 1})

	_, err := svc.SetStatus(ctx, "missing", StatusShipped)
	var nf *OrderNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, CodeOrderNotFound, nf.Code())

	_, err = svc.SetStatus(ctx, o.OrderID, "Lost")
	var inv *InvalidStatusError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "Lost", inv.Status)

	stored, _ := f.ledger.Get(ctx, o.OrderID)
	assert.Equal(t, StatusNew, stored.Status)
}

func TestSetStatus_UncancelMissingProduct(t *testing.T) {
	f := newFixture(t)
	svc := newService(t, f, nil)
	ctx := context.Background()
	a := f.product(t, "A", "1", 10)

	o := newOrder("legacy", StatusCancelled, a.CreatedAt,
		LineItem{ProductID: a.ProductID, ProductName: "A", Quantity: 1, UnitPrice: pricing.FromInt(1), LineTotal: pricing.FromInt(1)},
		LineItem{ProductID: "ghost", ProductName: "Ghost", Quantity: 1, UnitPrice: pricing.FromInt(1), LineTotal: pricing.FromInt(1)})
	require.NoError(t, f.ledger.Create(ctx, o, nil, ""))

	_, err := svc.SetStatus(ctx, "legacy", StatusProcessing)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "ghost", ise.ProductID)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, 10, f.stock(t, a.ProductID), "no line decremented")
}
