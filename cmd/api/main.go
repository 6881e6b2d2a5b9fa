package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/dashboard"
	orderevents "github.com/imrishuroy/go-storefront-orders/internal/events"
	"github.com/imrishuroy/go-storefront-orders/internal/handlers"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
	"github.com/imrishuroy/go-storefront-orders/internal/tlsconfig"
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

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid time zone", zap.Error(err))
	}
	calc, err := pricing.NewCalculator(cfg.TaxRate)
	if err != nil {
		logger.Fatal("invalid tax rate", zap.Error(err))
	}

	publisher, closePublisher := newPublisher(cfg, clients, logger)
	defer closePublisher()

	products := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable)
	idem := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTbl, cfg.IdempotencyTTL)
	ledger := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.ProductsTable).WithIdempotency(idem)

	r := handlers.NewRouter(handlers.HandlerConfig{
		Products:          products,
		Orders:            ledger,
		Workflow:          orders.NewService(products, ledger, calc, publisher, logger),
		Idempotency:       idem,
		Dashboard:         dashboard.NewAggregator(products, ledger, loc, cfg.LowStockThreshold),
		Calculator:        calc,
		Logger:            logger,
		AdminAPIKey:       cfg.AdminAPIKey,
		LowStockThreshold: cfg.LowStockThreshold,
		Location:          loc,
	})
	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY is not set, admin routes will reject every request")
	}

	if cfg.RunLocal {
		serve(cfg, r, logger)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// newPublisher fans order events out to every configured sink. The returned
// func releases sink resources.
func newPublisher(cfg *config.Config, clients *aws.AWSClients, logger *zap.Logger) (orderevents.Publisher, func()) {
	var sinks orderevents.Fanout
	closers := []func() error{}

	if cfg.OrdersQueueURL != "" {
		sinks = append(sinks, orderevents.NewSQSPublisher(aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL)))
		logger.Info("publishing order events to SQS", zap.String("queue_url", cfg.OrdersQueueURL))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := orderevents.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, kp)
		closers = append(closers, kp.Close)
		logger.Info("publishing order events to Kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("failed to close event publisher", zap.Error(err))
			}
		}
	}
	if len(sinks) == 0 {
		logger.Info("no event sink configured, order events are dropped")
		return orderevents.Noop{}, closeAll
	}
	return sinks, closeAll
}

// serve runs a plain HTTP server (mTLS when SPIRE is enabled) until SIGINT or SIGTERM.
func serve(cfg *config.Config, r *gin.Engine, logger *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tlsCfg, source, err := tlsconfig.Load(ctx, cfg.TLS, logger)
	if err != nil {
		logger.Fatal("failed to load TLS config", zap.Error(err))
	}
	defer source.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.Bool("tls", tlsCfg != nil))
		var err error
		if tlsCfg != nil {
			go source.Watch(ctx, time.Hour)
			// certificates come from TLSConfig
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
