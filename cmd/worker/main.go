package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	p := NewProcessor(
		aws.NewMetrics(clients.CloudWatch, cfg.MetricsNS),
		catalog.NewStore(clients.DynamoDB, cfg.ProductsTable),
		cfg.LowStockThreshold,
		logger,
	)

	// If RUN_LOCAL=true, process a single simulated SQS message and exit.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"eventId":"local-1","type":"order.created","orderId":"local-order-1","status":"New","total":0,"items":[]}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler error", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
