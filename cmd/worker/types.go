package main

import (
	"context"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
)

// Metric names published to CloudWatch.
const (
	MetricOrdersPlaced     = "OrdersPlaced"
	MetricOrderRevenue     = "OrderRevenue"
	MetricOrdersCancelled  = "OrdersCancelled"
	MetricOrdersRestored   = "OrdersRestored"
	MetricStatusChanged    = "OrderStatusChanged"
	MetricLowStockProducts = "LowStockProducts"
)

// MetricRecorder is satisfied by aws.Metrics.
type MetricRecorder interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
	Value(ctx context.Context, name string, value float64, dims map[string]string) error
}

// ProductReader is the slice of the catalog the worker reads.
type ProductReader interface {
	FindByID(ctx context.Context, productID string) (*catalog.Product, error)
}
