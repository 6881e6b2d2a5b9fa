package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
)

// maxTransactItems is DynamoDB's TransactWriteItems limit.
const maxTransactItems = 100

// MaxOrderLines is the most distinct products one order can hold: the order
// write, one stock update per product and the idempotency record share a
// single transaction.
const MaxOrderLines = maxTransactItems - 2

// Reserver builds the idempotency record committed alongside a new order.
type Reserver interface {
	ReserveItem(key, orderID string) (types.TransactWriteItem, error)
}

// Store encapsulates operations on the orders table. Every write that also
// touches stock is a single TransactWriteItems call.
type Store struct {
	client        aws.DynamoDBAPI
	tableName     string
	productsTable string
	reserver      Reserver
	nowFunc       func() time.Time
}

// NewStore creates a new orders Store. productsTable is where stock changes are applied.
func NewStore(client aws.DynamoDBAPI, tableName, productsTable string) *Store {
	return &Store{
		client:        client,
		tableName:     tableName,
		productsTable: productsTable,
		nowFunc:       time.Now,
	}
}

// WithIdempotency makes Create honour idempotency keys using r.
func (s *Store) WithIdempotency(r Reserver) *Store {
	s.reserver = r
	return s
}

// Create atomically writes:
//   - the order item (condition attribute_not_exists(order_id))
//   - one guarded stock update per change
//   - the idempotency record, when idempotencyKey is set
//
// A failed stock guard is reported as *InsufficientStockError and a reused key
// as ErrDuplicateRequest. Nothing is written on failure.
func (s *Store) Create(ctx context.Context, order *Order, changes []catalog.StockChange, idempotencyKey string) error {
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	}}
	items = append(items, s.stockItems(changes)...)

	if idempotencyKey != "" {
		if s.reserver == nil {
			return errors.New("idempotency key given but no idempotency store configured")
		}
		reserve, err := s.reserver.ReserveItem(idempotencyKey, order.OrderID)
		if err != nil {
			return err
		}
		items = append(items, reserve)
	}

	if len(items) > maxTransactItems {
		return &TooManyItemsError{Lines: len(changes), Max: MaxOrderLines}
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return s.cancellationError(tce, changes, func(i int) error {
				if i == 0 {
					return fmt.Errorf("order %s already exists: %w", order.OrderID, err)
				}
				return ErrDuplicateRequest
			})
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// ApplyStatus moves order to next together with the stock changes. The write is
// conditional on the status the caller read, so concurrent transitions surface
// as ErrStatusConflict instead of double-applying inventory effects.
func (s *Store) ApplyStatus(ctx context.Context, order *Order, next string, changes []catalog.StockChange) (*Order, error) {
	now := s.nowFunc().UTC()
	ua, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("marshal updated_at: %w", err)
	}

	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                &s.tableName,
			Key:                      orderKey(order.OrderID),
			UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
			ConditionExpression:      awsString("#s = :expected"),
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":      &types.AttributeValueMemberS{Value: next},
				":expected": &types.AttributeValueMemberS{Value: order.Status},
				":ua":       ua,
			},
		},
	}}
	items = append(items, s.stockItems(changes)...)

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, s.cancellationError(tce, changes, func(int) error { return ErrStatusConflict })
		}
		return nil, fmt.Errorf("transact write: %w", err)
	}

	updated := *order
	updated.Status = next
	updated.UpdatedAt = now
	return &updated, nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// List returns orders matching f, newest first. Status is filtered by DynamoDB;
// the date range is applied here because created_at strings do not sort
// lexically once fractional seconds vary in length.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if f.Status != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("status").Equal(expression.Value(f.Status))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	all, err := s.scan(ctx, input)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, o := range all {
		if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && o.CreatedAt.After(f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// All returns every order in the table.
func (s *Store) All(ctx context.Context) ([]Order, error) {
	return s.scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
}

func (s *Store) scan(ctx context.Context, input *dyn.ScanInput) ([]Order, error) {
	var orders []Order
	paginator := dyn.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		orders = append(orders, batch...)
	}
	return orders, nil
}

func (s *Store) stockItems(changes []catalog.StockChange) []types.TransactWriteItem {
	now := s.nowFunc()
	items := make([]types.TransactWriteItem, 0, len(changes))
	for _, c := range changes {
		items = append(items, types.TransactWriteItem{Update: catalog.StockUpdate(s.productsTable, c, now)})
	}
	return items
}

// cancellationError maps failed reasons to a typed error. Reasons are
// positional: index 0 is the order write, 1..len(changes) the stock updates
// and the rest the idempotency record. Non-stock indexes are resolved by other.
// A failed increment means the product was deleted after it was read.
func (s *Store) cancellationError(tce *types.TransactionCanceledException, changes []catalog.StockChange, other func(i int) error) error {
	var stockErr error
	for i, r := range tce.CancellationReasons {
		if r.Code == nil || *r.Code != "ConditionalCheckFailed" {
			continue
		}
		if i >= 1 && i <= len(changes) {
			c := changes[i-1]
			if c.Delta > 0 {
				// increments are only guarded by existence
				return fmt.Errorf("restock %s: %w", c.ProductID, catalog.ErrProductNotFound)
			}
			if stockErr == nil {
				stockErr = &InsufficientStockError{
					ProductID:   c.ProductID,
					ProductName: c.ProductName,
					Available:   stockOf(r.Item),
					Requested:   -c.Delta,
				}
			}
			continue
		}
		// order or idempotency conflicts win over stock: retrying cannot help
		return other(i)
	}
	if stockErr != nil {
		return stockErr
	}
	return fmt.Errorf("transaction canceled: %w", tce)
}

func stockOf(item map[string]types.AttributeValue) int {
	n, ok := item["stock"].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return v
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
