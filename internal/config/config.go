package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	RunLocal       bool   `envconfig:"RUN_LOCAL" default:"false"` // http server instead of Lambda
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	AdminAPIKey    string `envconfig:"ADMIN_API_KEY"`
	AWSRegion      string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint    string `envconfig:"AWS_ENDPOINT_OVERRIDE"` // e.g. http://localhost:8000 for DynamoDB Local
	MetricsNS      string `envconfig:"METRICS_NAMESPACE" default:"Storefront"`
	ProductsTable  string `envconfig:"PRODUCTS_TABLE" default:"products"`
	OrdersTable    string `envconfig:"ORDERS_TABLE" default:"orders"`
	IdempotencyTbl string `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	OrdersQueueURL string        `envconfig:"ORDERS_QUEUE_URL"`
	KafkaBrokers   []string      `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string        `envconfig:"KAFKA_TOPIC" default:"order-events"`

	TaxRate           decimal.Decimal `envconfig:"TAX_RATE" default:"0.08"`
	LowStockThreshold int             `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
	TimeZone          string          `envconfig:"TIMEZONE" default:"Local"`

	TLS TLSConfig
}

type TLSConfig struct {
	Enabled    bool   `envconfig:"TLS_ENABLED" default:"false"`
	SocketPath string `envconfig:"SPIRE_SOCKET_PATH" default:"unix:///run/spire/sockets/agent.sock"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("TAX_RATE must not be negative, got %s", cfg.TaxRate)
	}
	if cfg.LowStockThreshold < 0 {
		return nil, fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative, got %d", cfg.LowStockThreshold)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves TimeZone, the zone "today" is measured in on the dashboard.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
