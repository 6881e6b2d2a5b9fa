// Package events publishes order lifecycle notifications after the order
// ledger has committed. Publishing is best effort: callers log failures.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// Event types
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the message body sent to SQS and Kafka.
type OrderEvent struct {
	EventID        string        `json:"eventId"`
	Type           string        `json:"type"`
	OrderID        string        `json:"orderId"`
	Status         string        `json:"status"`
	PreviousStatus string        `json:"previousStatus,omitempty"`
	Total          pricing.Money `json:"total"`
	Items          []Item        `json:"items"`
	OccurredAt     time.Time     `json:"occurredAt"`
	RequestID      string        `json:"requestId,omitempty"`
}

// Item is a product and quantity touched by the order.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// NewOrderEvent stamps a fresh event id and time.
func NewOrderEvent(eventType, orderID, status string, total pricing.Money, items []Item) OrderEvent {
	return OrderEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OrderID:    orderID,
		Status:     status,
		Total:      total,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
}

// Noop drops every event. Used when no queue or topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt OrderEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
