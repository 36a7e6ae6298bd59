package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUCTION_DB_URL", "postgres://localhost/auctions")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/auctions", cfg.DatabaseURL)
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.BidMinIncrement))
	assert.Equal(t, 5, cfg.BidMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.BidTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BID_MIN_INCREMENT", "0.25")
	t.Setenv("BID_MAX_ATTEMPTS", "8")
	t.Setenv("OUTBOX_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.25", cfg.BidMinIncrement.String())
	assert.Equal(t, 8, cfg.BidMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
}

func TestLoad_RejectsNonPositiveIncrement(t *testing.T) {
	t.Setenv("BID_MIN_INCREMENT", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/auctions"}

	assert.NoError(t, cfg.Require("AUCTION_DB_URL"))

	err := cfg.Require("AUCTION_DB_URL", "RABBITMQ_URL", "REDIS_URL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RABBITMQ_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}
