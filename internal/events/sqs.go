package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessageSender is satisfied by aws.Publisher.
type MessageSender interface {
	SendOrderMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// SQSPublisher sends events to the orders queue. The event type and order id
// travel as message attributes so consumers can filter without decoding.
type SQSPublisher struct {
	sender MessageSender
}

func NewSQSPublisher(sender MessageSender) *SQSPublisher {
	return &SQSPublisher{sender: sender}
}

func (p *SQSPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"event_type": evt.Type,
		"order_id":   evt.OrderID,
		"request_id": evt.RequestID,
	}
	if err := p.sender.SendOrderMessage(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("publish %s to sqs: %w", evt.Type, err)
	}
	return nil
}
