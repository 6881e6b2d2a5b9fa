package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNegativeStock   = errors.New("stock cannot go below zero")
	ErrStatusChanged   = errors.New("product status changed concurrently")
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TableName returns the products table the store writes to.
func (s *Store) TableName() string { return s.tableName }

// Create persists a new product. ProductID is generated when empty.
func (s *Store) Create(ctx context.Context, p *Product) error {
	now := s.nowFunc().UTC()
	if p.ProductID == "" {
		p.ProductID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(product_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("product %s already exists: %w", p.ProductID, err)
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// FindByID fetches a product by id regardless of status. Returns (nil, nil) if not found.
func (s *Store) FindByID(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            productKey(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// FindActiveProduct returns the product only when it exists and is Active.
func (s *Store) FindActiveProduct(ctx context.Context, productID string) (*Product, error) {
	p, err := s.FindByID(ctx, productID)
	if err != nil || p == nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, nil
	}
	return p, nil
}

// Update overwrites the editable attributes of an existing product and returns the new state.
func (s *Store) Update(ctx context.Context, p *Product) (*Product, error) {
	if p.Stock < 0 {
		return nil, ErrNegativeStock
	}
	update := expression.Set(expression.Name("name"), expression.Value(p.Name)).
		Set(expression.Name("description"), expression.Value(p.Description)).
		Set(expression.Name("price"), expression.Value(p.Price)).
		Set(expression.Name("stock"), expression.Value(p.Stock)).
		Set(expression.Name("category"), expression.Value(p.Category)).
		Set(expression.Name("status"), expression.Value(p.Status)).
		Set(expression.Name("updated_at"), expression.Value(s.nowFunc().UTC()))
	if p.ImageURL != "" {
		update = update.Set(expression.Name("image_url"), expression.Value(p.ImageURL))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       productKey(p.ProductID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConditionExpression:       awsString("attribute_exists(product_id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return unmarshalProduct(out.Attributes)
}

// ToggleStatus flips Active <-> Inactive. The write is conditional on the
// status read, so concurrent toggles cannot cancel each other silently.
func (s *Store) ToggleStatus(ctx context.Context, productID string) (*Product, error) {
	p, err := s.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	next := StatusActive
	if p.IsActive() {
		next = StatusInactive
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      productKey(productID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: next},
			":expected": &types.AttributeValueMemberS{Value: p.Status},
			":ua":       &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("#s = :expected"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return unmarshalProduct(out.Attributes)
}

// AdjustStock adds delta (which may be negative) to the product's stock in a
// single conditional write. The write fails with ErrNegativeStock when the
// result would drop below zero and with ErrProductNotFound when the product is missing.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*Product, error) {
	upd := StockUpdate(s.tableName, StockChange{ProductID: productID, Delta: delta}, s.nowFunc())

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                           upd.TableName,
		Key:                                 upd.Key,
		UpdateExpression:                    upd.UpdateExpression,
		ConditionExpression:                 upd.ConditionExpression,
		ExpressionAttributeNames:            upd.ExpressionAttributeNames,
		ExpressionAttributeValues:           upd.ExpressionAttributeValues,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		ReturnValues:                        types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, ErrProductNotFound
			}
			return nil, ErrNegativeStock
		}
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	return unmarshalProduct(out.Attributes)
}

// StockUpdate builds the conditional update for a stock change. Decrements are
// guarded by stock >= quantity so the stored value can never go negative.
func StockUpdate(table string, change StockChange, now time.Time) *types.Update {
	values := map[string]types.AttributeValue{
		":delta": &types.AttributeValueMemberN{Value: strconv.Itoa(change.Delta)},
		":ua":    &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
	}
	cond := "attribute_exists(product_id)"
	if change.Delta < 0 {
		values[":min"] = &types.AttributeValueMemberN{Value: strconv.Itoa(-change.Delta)}
		cond += " AND #stock >= :min"
	}
	return &types.Update{
		TableName:                           awsString(table),
		Key:                                 productKey(change.ProductID),
		UpdateExpression:                    awsString("SET #stock = #stock + :delta, updated_at = :ua"),
		ConditionExpression:                 awsString(cond),
		ExpressionAttributeNames:            map[string]string{"#stock": "stock"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
}

// List returns products matching f, newest first. Status and category are
// filtered by DynamoDB; search is applied here since contains() is case-sensitive.
func (s *Store) List(ctx context.Context, f Filter) ([]Product, error) {
	var cond expression.ConditionBuilder
	hasCond := false
	if f.Status != "" {
		cond = expression.Name("status").Equal(expression.Value(f.Status))
		hasCond = true
	}
	if f.Category != "" {
		c := expression.Name("category").Equal(expression.Value(f.Category))
		if hasCond {
			cond = cond.And(c)
		} else {
			cond = c
		}
		hasCond = true
	}

	input := &dyn.ScanInput{TableName: &s.tableName}
	if hasCond {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	products, err := s.scan(ctx, input)
	if err != nil {
		return nil, err
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		matched := products[:0]
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), q) ||
				strings.Contains(strings.ToLower(p.Description), q) ||
				strings.Contains(strings.ToLower(p.Category), q) {
				matched = append(matched, p)
			}
		}
		products = matched
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

// Categories returns the distinct categories of Active products, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("status").Equal(expression.Value(StatusActive))).
		WithProjection(expression.NamesList(expression.Name("category"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	products, err := s.scan(ctx, &dyn.ScanInput{
		TableName:                 &s.tableName,
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	categories := []string{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// LowStock returns Active products with stock <= threshold, lowest stock first,
// capped at limit (no cap when limit <= 0).
func (s *Store) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	cond := expression.Name("status").Equal(expression.Value(StatusActive)).
		And(expression.Name("stock").LessThanEqual(expression.Value(threshold)))
	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	products, err := s.scan(ctx, &dyn.ScanInput{
		TableName:                 &s.tableName,
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(products, func(i, j int) bool { return products[i].Stock < products[j].Stock })
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// All returns every product in the table.
func (s *Store) All(ctx context.Context) ([]Product, error) {
	return s.scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
}

func (s *Store) scan(ctx context.Context, input *dyn.ScanInput) ([]Product, error) {
	var products []Product
	paginator := dyn.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var batch []Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, batch...)
	}
	return products, nil
}

func unmarshalProduct(item map[string]types.AttributeValue) (*Product, error) {
	var p Product
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
