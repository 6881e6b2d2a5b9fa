package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.Equal(t, 10, cfg.LowStockThreshold)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "order-events", cfg.KafkaTopic)
	assert.False(t, cfg.TLS.Enabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TAX_RATE", "0.18")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("TLS_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.18")))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.TLS.Enabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERS_TABLE=orders-from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ORDERS_TABLE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders-from-file", cfg.OrdersTable)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"TAX_RATE":            "-0.1",
		"LOW_STOCK_THRESHOLD": "-1",
		"TIMEZONE":            "Mars/Olympus",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
