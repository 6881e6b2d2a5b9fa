// Package dashboard computes the admin overview from the product and order tables.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// Stats is the dashboard payload.
type Stats struct {
	TodayOrders    int            `json:"todayOrders"`
	TodayRevenue   pricing.Money  `json:"todayRevenue"`
	LowStockCount  int            `json:"lowStockCount"`
	TotalProducts  int            `json:"totalProducts"`
	TotalOrders    int            `json:"totalOrders"`
	OrdersByStatus map[string]int `json:"ordersByStatus"`
}

type ProductSource interface {
	All(ctx context.Context) ([]catalog.Product, error)
}

type OrderSource interface {
	All(ctx context.Context) ([]orders.Order, error)
}

// Aggregator is read-only; it never writes to either table.
type Aggregator struct {
	products  ProductSource
	orders    OrderSource
	loc       *time.Location
	threshold int
	nowFunc   func() time.Time
}

// NewAggregator returns an Aggregator. "Today" is the calendar day in loc
// (time.Local when nil); threshold <= 0 means catalog.DefaultLowStockThreshold.
func NewAggregator(products ProductSource, orderSource OrderSource, loc *time.Location, threshold int) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if threshold <= 0 {
		threshold = catalog.DefaultLowStockThreshold
	}
	return &Aggregator{
		products:  products,
		orders:    orderSource,
		loc:       loc,
		threshold: threshold,
		nowFunc:   time.Now,
	}
}

// Stats loads both tables and computes the rollup as of now.
func (a *Aggregator) Stats(ctx context.Context) (*Stats, error) {
	products, err := a.products.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	all, err := a.orders.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	stats := Compute(a.nowFunc(), a.loc, a.threshold, products, all)
	return &stats, nil
}

// Compute is the pure rollup behind Stats.
func Compute(now time.Time, loc *time.Location, threshold int, products []catalog.Product, all []orders.Order) Stats {
	start, end := DayBounds(now, loc)

	stats := Stats{
		TodayRevenue:   pricing.Zero,
		TotalProducts:  len(products),
		TotalOrders:    len(all),
		OrdersByStatus: make(map[string]int, len(orders.Statuses)),
	}
	for _, s := range orders.Statuses {
		stats.OrdersByStatus[s] = 0
	}

	for _, p := range products {
		if p.IsActive() && p.Stock <= threshold {
			stats.LowStockCount++
		}
	}

	for _, o := range all {
		stats.OrdersByStatus[o.Status]++
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			continue
		}
		stats.TodayOrders++
		if o.Status != orders.StatusCancelled {
			stats.TodayRevenue = stats.TodayRevenue.Add(o.Total)
		}
	}
	return stats
}

// DayBounds returns local midnight of now's day in loc and the next midnight.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
