package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	orderevents "github.com/imrishuroy/go-storefront-orders/internal/events"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Processor consumes order events from SQS. It records business metrics and
// flags products whose stock fell to the low-stock threshold. It never writes
// to the order or product tables.
type Processor struct {
	metrics   MetricRecorder
	products  ProductReader
	threshold int
	logger    *zap.Logger
}

// NewProcessor creates a new worker processor.
func NewProcessor(metrics MetricRecorder, products ProductReader, threshold int, logger *zap.Logger) *Processor {
	if threshold <= 0 {
		threshold = catalog.DefaultLowStockThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		metrics:   metrics,
		products:  products,
		threshold: threshold,
		logger:    logger,
	}
}

// Handle processes an SQS batch. Failed messages are reported individually so
// only they are retried and eventually land in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("worker error",
				zap.String("message_id", rec.MessageId),
				zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var evt orderevents.OrderEvent
	if err := json.Unmarshal([]byte(rec.Body), &evt); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log := p.logger.With(
		zap.String("event_id", evt.EventID),
		zap.String("event_type", evt.Type),
		zap.String("order_id", evt.OrderID),
		zap.String("request_id", evt.RequestID))
	log.Info("received order event")

	switch evt.Type {
	case orderevents.TypeOrderCreated:
		return p.orderCreated(ctx, evt)
	case orderevents.TypeOrderStatusChanged:
		return p.statusChanged(ctx, evt)
	default:
		// newer producers may emit types this worker predates
		log.Warn("skipping unknown event type")
		return nil
	}
}

func (p *Processor) orderCreated(ctx context.Context, evt orderevents.OrderEvent) error {
	if err := p.metrics.Count(ctx, MetricOrdersPlaced, 1, nil); err != nil {
		return err
	}
	if err := p.metrics.Value(ctx, MetricOrderRevenue, evt.Total.Float64(), nil); err != nil {
		return err
	}
	return p.checkStock(ctx, evt.Items)
}

func (p *Processor) statusChanged(ctx context.Context, evt orderevents.OrderEvent) error {
	dims := map[string]string{"Status": evt.Status}
	if err := p.metrics.Count(ctx, MetricStatusChanged, 1, dims); err != nil {
		return err
	}

	switch {
	case evt.Status == orders.StatusCancelled:
		return p.metrics.Count(ctx, MetricOrdersCancelled, 1, nil)
	case evt.PreviousStatus == orders.StatusCancelled:
		// stock was taken again
		if err := p.metrics.Count(ctx, MetricOrdersRestored, 1, nil); err != nil {
			return err
		}
		return p.checkStock(ctx, evt.Items)
	}
	return nil
}

func (p *Processor) checkStock(ctx context.Context, items []orderevents.Item) error {
	for _, it := range items {
		product, err := p.products.FindByID(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("find product %s: %w", it.ProductID, err)
		}
		if product == nil || !product.IsActive() || product.Stock > p.threshold {
			continue
		}
		p.logger.Warn("product stock is low",
			zap.String("product_id", product.ProductID),
			zap.String("name", product.Name),
			zap.Int("stock", product.Stock),
			zap.Int("threshold", p.threshold))
		err = p.metrics.Count(ctx, MetricLowStockProducts, 1, map[string]string{"ProductId": product.ProductID})
		if err != nil {
			return err
		}
	}
	return nil
}
