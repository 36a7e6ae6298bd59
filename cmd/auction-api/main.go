package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/floroz/livebid/internal/adapters/api"
	"github.com/floroz/livebid/internal/adapters/cache"
	"github.com/floroz/livebid/internal/adapters/database"
	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bidderstats"
	"github.com/floroz/livebid/internal/domain/bids"
	"github.com/floroz/livebid/migrations"
	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/pkg/config"
	pkgdb "github.com/floroz/livebid/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("AUCTION_DB_URL", "AUTH_PUBLIC_KEY_PATH"); err != nil {
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

	// 2. Migrations
	sqlDB := stdlib.OpenDBFromPool(pool)
	if err := migrations.Up(sqlDB); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 3. Redis (optional, reads fall back to Postgres)
	var auctionCache auctions.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed, running without cache", "error", err)
		} else {
			defer rdb.Close()
			auctionCache = cache.NewRedisAuctionCache(rdb, cfg.CacheTTL)
			logger.Info("Redis Connected")
		}
	}

	// 4. Token verification
	verifier, err := auth.NewVerifierFromFile(cfg.AuthPublicKeyPath, cfg.AuthIssuer)
	if err != nil {
		logger.Error("Failed to load auth public key", "error", err)
		os.Exit(1)
	}

	// 5. Repositories
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	store := database.NewPostgresAuctionStore(pool, txManager, outboxRepo)
	statsRepo := database.NewBidderStatsRepository(pool)

	// 6. Domain services
	auctionService := auctions.NewService(store, auctionCache, logger)
	engine := bids.NewEngine(store, auctionCache, bids.EngineConfig{
		MinIncrement: cfg.BidMinIncrement,
		MaxAttempts:  cfg.BidMaxAttempts,
	}, logger)
	queries := bids.NewQueryService(store, store, logger)
	statsService := bidderstats.NewService(statsRepo, txManager)

	// 7. API
	handler := api.NewAuctionServiceHandler(engine, queries, auctionService, statsService, cfg.BidTimeout, logger)
	path, routes := handler.Routes(connect.WithInterceptors(auth.NewAuthInterceptor(verifier, api.PublicProcedures...)))

	mux := http.NewServeMux()
	mux.Handle(path, routes)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting Auction API", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API stopped")
}
