package idempotency

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory mock of the idempotency table.
type simpleMock struct {
	mu            sync.Mutex
	table         map[string]map[string]types.AttributeValue
	putCalls      int
	getCalls      int
	updateCalls   int
	transactCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	// implement ConditionExpression: attribute_not_exists(idempotency_key)
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key)" {
		keyAttr := params.Item["idempotency_key"]
		if keyAttr == nil {
			return nil, errors.New("missing key")
		}
		k := keyAttr.(*types.AttributeValueMemberS).Value
		if _, ok := m.table[k]; ok {
			// simulate conditional failure
			return nil, &types.ConditionalCheckFailedException{}
		}
		m.table[k] = params.Item
		return &dyn.PutItemOutput{}, nil
	}
	// otherwise simple put (overwrite)
	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	k := params.Item["idempotency_key"].(*types.AttributeValueMemberS).Value
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists(idempotency_key)" {
			return nil, &types.ConditionalCheckFailedException{}
		}
		return nil, errors.New("item not found")
	}
	// naive update: SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua
	if v, ok := params.ExpressionAttributeValues[":rb"]; ok {
		item["response_body"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":rs"]; ok {
		item["response_status"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":done"]; ok {
		item["status"] = v
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *simpleMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++
	// a Put conditioned on attribute_not_exists(idempotency_key) fails when the key exists
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			if p.ConditionExpression != nil && *p.ConditionExpression == "attribute_not_exists(idempotency_key)" {
				kattr := p.Item["idempotency_key"]
				if kattr == nil {
					return nil, errors.New("missing key in transact put")
				}
				k := kattr.(*types.AttributeValueMemberS).Value
				if _, ok := m.table[k]; ok {
					return nil, &types.TransactionCanceledException{
						CancellationReasons: []types.CancellationReason{{Code: awsString("ConditionalCheckFailed")}},
					}
				}
			}
		}
	}
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			kattr := p.Item["idempotency_key"]
			if kattr != nil {
				k := kattr.(*types.AttributeValueMemberS).Value
				m.table[k] = p.Item
			}
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *simpleMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("scan not supported on the idempotency table")
}
