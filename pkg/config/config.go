package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config is shared by the api and worker binaries. Each binary only requires
// the connections it actually opens, see Require.
type Config struct {
	DatabaseURL string `envconfig:"AUCTION_DB_URL"`
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	HTTPAddr          string `envconfig:"HTTP_ADDR" default:":8080"`
	AuthPublicKeyPath string `envconfig:"AUTH_PUBLIC_KEY_PATH"`
	AuthIssuer        string `envconfig:"AUTH_ISSUER" default:"gavel-auth-service"`

	BidMinIncrement decimal.Decimal `envconfig:"BID_MIN_INCREMENT" default:"1.00"`
	BidMaxAttempts  int             `envconfig:"BID_MAX_ATTEMPTS" default:"5"`
	BidTimeout      time.Duration   `envconfig:"BID_TIMEOUT" default:"3s"`
	LockTimeout     time.Duration   `envconfig:"LOCK_TIMEOUT" default:"2s"`

	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxInterval  time.Duration `envconfig:"OUTBOX_INTERVAL" default:"500ms"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"10s"`
	SweepBatchSize  int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"30s"`
}

// Load reads .env.local and .env if present, then decodes the environment.
// Variables already set in the environment win over the files.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if !cfg.BidMinIncrement.IsPositive() {
		return nil, errors.New("BID_MIN_INCREMENT must be positive")
	}
	if cfg.BidMaxAttempts < 1 {
		return nil, errors.New("BID_MAX_ATTEMPTS must be at least 1")
	}
	return &cfg, nil
}

// Require fails when any of the named settings is empty.
func (c *Config) Require(names ...string) error {
	values := map[string]string{
		"AUCTION_DB_URL":       c.DatabaseURL,
		"RABBITMQ_URL":         c.RabbitMQURL,
		"REDIS_URL":            c.RedisURL,
		"AUTH_PUBLIC_KEY_PATH": c.AuthPublicKeyPath,
	}

	var errs []error
	for _, name := range names {
		if values[name] == "" {
			errs = append(errs, fmt.Errorf("%s environment variable is required", name))
		}
	}
	return errors.Join(errs...)
}
