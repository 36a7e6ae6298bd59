package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/livebid/internal/adapters/cache"
	"github.com/floroz/livebid/internal/adapters/database"
	"github.com/floroz/livebid/internal/adapters/events"
	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bidderstats"
	"github.com/floroz/livebid/pkg/config"
	pkgdb "github.com/floroz/livebid/pkg/database"
	pkgevents "github.com/floroz/livebid/pkg/events"
)

// The worker runs the outbox relay, the expiry sweeper and the bidder stats
// consumer. Any one of them failing stops the others.
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("AUCTION_DB_URL", "RABBITMQ_URL"); err != nil {
		logger.Error("Missing configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 3. Redis, so closes done by the sweeper evict stale views
	var auctionCache auctions.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed, cached views expire by TTL", "error", err)
		} else {
			defer rdb.Close()
			auctionCache = cache.NewRedisAuctionCache(rdb, cfg.CacheTTL)
		}
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	store := database.NewPostgresAuctionStore(pool, txManager, outboxRepo)
	statsRepo := database.NewBidderStatsRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		pkgevents.ExchangeAuctionEvents,
		logger,
	)
	sweeper := auctions.NewExpirySweeper(
		auctions.NewService(store, auctionCache, logger),
		cfg.SweepInterval,
		cfg.SweepBatchSize,
		logger,
	)
	consumer := events.NewBidderStatsConsumer(amqpConn, bidderstats.NewService(statsRepo, txManager), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Expiry Sweeper...")
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Bidder Stats Consumer...")
		return consumer.Run(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
