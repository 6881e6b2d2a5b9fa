// Package dynamotest provides an in-memory DynamoDB fake for unit tests.
//
// It understands the subset of the expression language the stores emit:
// SET clauses with + and - arithmetic, AND-joined conditions and filters with
// comparison operators, attribute_exists and attribute_not_exists. Both raw
// expressions and those produced by the expression builder are accepted.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored DynamoDB item.
type Item = map[string]types.AttributeValue

// Fake stores items per table: table -> pk value -> item.
type Fake struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]Item

	// Err, when set, is returned by every call.
	Err error

	TransactCalls int
	UpdateCalls   int
	PutCalls      int
	ScanCalls     int
	LastScan      *dyn.ScanInput
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		keys:   map[string]string{},
		tables: map[string]map[string]Item{},
	}
}

// CreateTable registers table with a string partition key attribute.
func (f *Fake) CreateTable(table, pkAttr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[table] = pkAttr
	if _, ok := f.tables[table]; !ok {
		f.tables[table] = map[string]Item{}
	}
	return f
}

// Seed stores item directly, bypassing conditions.
func (f *Fake) Seed(table string, item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, err := f.pkOf(table, item)
	if err != nil {
		panic(err)
	}
	f.tables[table][pk] = cloneItem(item)
}

// Raw returns a copy of the stored item, or nil.
func (f *Fake) Raw(table, pk string) Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.tables[table][pk]
	if !ok {
		return nil
	}
	return cloneItem(item)
}

// Len returns the number of items in table.
func (f *Fake) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *Fake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	pk, err := f.pkOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := f.tables[*params.TableName][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: cloneItem(item)}, nil
}

func (f *Fake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	table := *params.TableName
	pk, err := f.pkOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	existing := f.tables[table][pk]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	f.tables[table][pk] = cloneItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	table := *params.TableName
	pk, err := f.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing := f.tables[table][pk]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			ccf := &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
			if params.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld && existing != nil {
				ccf.Item = cloneItem(existing)
			}
			return nil, ccf
		}
	}
	updated, err := applyUpdate(params.Key, existing, params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	f.tables[table][pk] = updated
	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = cloneItem(updated)
	}
	return out, nil
}

func (f *Fake) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	// First pass: verify every condition against the current state.
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	seen := map[string]bool{}
	for i, it := range params.TransactItems {
		table, key, cond, names, values, returnOld, err := describe(it)
		if err != nil {
			return nil, err
		}
		pk, err := f.pkOf(table, key)
		if err != nil {
			return nil, err
		}
		if seen[table+"/"+pk] {
			return nil, errors.New("ValidationException: transaction request cannot include multiple operations on one item")
		}
		seen[table+"/"+pk] = true

		reasons[i] = types.CancellationReason{Code: strPtr("None")}
		if cond == nil {
			continue
		}
		existing := f.tables[table][pk]
		ok, err := evalCondition(*cond, names, values, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed"), Message: strPtr("The conditional request failed")}
			if returnOld && existing != nil {
				reasons[i].Item = cloneItem(existing)
			}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	// Second pass: apply all writes.
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			table := *it.Put.TableName
			pk, _ := f.pkOf(table, it.Put.Item)
			f.tables[table][pk] = cloneItem(it.Put.Item)
		case it.Update != nil:
			table := *it.Update.TableName
			pk, _ := f.pkOf(table, it.Update.Key)
			updated, err := applyUpdate(it.Update.Key, f.tables[table][pk], it.Update.UpdateExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			f.tables[table][pk] = updated
		case it.Delete != nil:
			table := *it.Delete.TableName
			pk, _ := f.pkOf(table, it.Delete.Key)
			delete(f.tables[table], pk)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Scan returns every item matching FilterExpression in a single page, ordered by key.
func (f *Fake) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScanCalls++
	f.LastScan = params
	if f.Err != nil {
		return nil, f.Err
	}
	table := *params.TableName
	if _, ok := f.tables[table]; !ok {
		return nil, fmt.Errorf("ResourceNotFoundException: table %s", table)
	}
	keys := make([]string, 0, len(f.tables[table]))
	for k := range f.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []Item
	for _, k := range keys {
		item := f.tables[table][k]
		if params.FilterExpression != nil {
			ok, err := evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		items = append(items, cloneItem(item))
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items)), ScannedCount: int32(len(keys))}, nil
}

func (f *Fake) pkOf(table string, item Item) (string, error) {
	attr, ok := f.keys[table]
	if !ok {
		return "", fmt.Errorf("ResourceNotFoundException: table %s", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("ValidationException: missing key %s for table %s", attr, table)
	}
	return v.Value, nil
}

func describe(it types.TransactWriteItem) (table string, key Item, cond *string, names map[string]string, values Item, returnOld bool, err error) {
	switch {
	case it.Put != nil:
		return *it.Put.TableName, it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues,
			it.Put.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld, nil
	case it.Update != nil:
		return *it.Update.TableName, it.Update.Key, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues,
			it.Update.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld, nil
	case it.ConditionCheck != nil:
		return *it.ConditionCheck.TableName, it.ConditionCheck.Key, it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues,
			it.ConditionCheck.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld, nil
	case it.Delete != nil:
		return *it.Delete.TableName, it.Delete.Key, it.Delete.ConditionExpression, it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues,
			it.Delete.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld, nil
	}
	return "", nil, nil, nil, nil, false, errors.New("empty transact item")
}

func cloneItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
