package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// DefaultTTL is how long a key is remembered when no window is configured.
const DefaultTTL = 24 * time.Hour

// ErrRecordNotFound is returned by MarkDone when the key was never reserved.
var ErrRecordNotFound = errors.New("idempotency record not found")

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // how long entries live before DynamoDB TTL removes them
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: TTL window (e.g., 24*time.Hour); DefaultTTL when <= 0.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	if ttlWindow <= 0 {
		ttlWindow = DefaultTTL
	}
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// ReserveItem builds the IN_PROGRESS record as a transaction Put, conditional on
// attribute_not_exists(idempotency_key). The order ledger commits it together
// with the order so a key can only ever produce one order.
func (s *Store) ReserveItem(key, orderID string) (types.TransactWriteItem, error) {
	now := s.nowFunc().UTC()
	rec := IdempotencyRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal record: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
		},
	}, nil
}

// Get retrieves an idempotency record by key. If not found or expired, returns (nil, nil).
// DynamoDB TTL deletion lags, so expiry is checked here as well.
func (s *Store) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: awsBool(true),
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt < s.nowFunc().Unix() {
		return nil, nil
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the response for replay.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: awsString("SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(idempotency_key)"),
		ReturnValues:        types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrRecordNotFound
		}
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
