package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/config"
)

// TableAdmin is the DynamoDB control-plane surface used by create-tables.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// tableSpec is a table with a single string hash key.
type tableSpec struct {
	name    string
	hashKey string
	ttlAttr string // empty when the table has no TTL
}

func tableSpecs(cfg *config.Config) []tableSpec {
	return []tableSpec{
		{name: cfg.ProductsTable, hashKey: "product_id"},
		{name: cfg.OrdersTable, hashKey: "order_id"},
		{name: cfg.IdempotencyTbl, hashKey: "idempotency_key", ttlAttr: "expires_at"},
	}
}

// createTables creates every missing table on-demand and enables TTL where set.
// Existing tables are left untouched.
func createTables(ctx context.Context, admin TableAdmin, specs []tableSpec, wait time.Duration, logger *zap.Logger) error {
	for _, spec := range specs {
		created, err := createTable(ctx, admin, spec)
		if err != nil {
			return err
		}
		if !created {
			logger.Info("table already exists", zap.String("table", spec.name))
			continue
		}
		logger.Info("table created", zap.String("table", spec.name))

		if spec.ttlAttr == "" {
			continue
		}
		if wait > 0 {
			waiter := dynamodb.NewTableExistsWaiter(admin)
			if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: &spec.name}, wait); err != nil {
				return fmt.Errorf("wait for table %s: %w", spec.name, err)
			}
		}
		_, err = admin.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: &spec.name,
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: &spec.ttlAttr,
				Enabled:       awsBool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("enable ttl on %s: %w", spec.name, err)
		}
		logger.Info("ttl enabled", zap.String("table", spec.name), zap.String("attribute", spec.ttlAttr))
	}
	return nil
}

func createTable(ctx context.Context, admin TableAdmin, spec tableSpec) (bool, error) {
	_, err := admin.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &spec.name,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: &spec.hashKey, AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: &spec.hashKey, KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return false, nil
		}
		return false, fmt.Errorf("create table %s: %w", spec.name, err)
	}
	return true, nil
}

func awsBool(b bool) *bool { return &b }
