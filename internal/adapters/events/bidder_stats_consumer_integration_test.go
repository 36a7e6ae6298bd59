//go:build integration

package events_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infradb "github.com/floroz/livebid/internal/adapters/database"
	"github.com/floroz/livebid/internal/adapters/events"
	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bidderstats"
	"github.com/floroz/livebid/internal/domain/bids"
	"github.com/floroz/livebid/pkg/database"
	pkgevents "github.com/floroz/livebid/pkg/events"
	"github.com/floroz/livebid/pkg/testhelpers"
)

// TestBidderStatsPipeline drives bids and a close through the Postgres store,
// the outbox relay, RabbitMQ and the consumer, and checks the projection.
func TestBidderStatsPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	amqpURL := testhelpers.NewRabbitMQ(t)
	testDB := testhelpers.NewTestDatabase(t)

	txManager := database.NewPostgresTransactionManager(testDB.Pool, 5*time.Second)
	outboxRepo := infradb.NewPostgresOutboxRepository(testDB.Pool)
	store := infradb.NewPostgresAuctionStore(testDB.Pool, txManager, outboxRepo)
	statsRepo := infradb.NewBidderStatsRepository(testDB.Pool)
	statsService := bidderstats.NewService(statsRepo, txManager)

	auctionService := auctions.NewService(store, nil, logger)
	engine := bids.NewEngine(store, nil, bids.EngineConfig{MinIncrement: decimal.NewFromInt(1), MaxAttempts: 5}, logger)

	pubConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	publisher, err := pkgevents.NewRabbitMQPublisher(pubConn)
	require.NoError(t, err)
	defer publisher.Close()

	relay := pkgevents.NewOutboxRelay(outboxRepo, publisher, txManager, 10, 50*time.Millisecond, pkgevents.ExchangeAuctionEvents, logger)

	consumeConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer consumeConn.Close()

	consumer := events.NewBidderStatsConsumer(consumeConn, statsService, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = consumer.Run(runCtx) }()

	// queue must exist before the relay publishes or the first events are dropped
	require.Eventually(t, func() bool {
		ch, chErr := consumeConn.Channel()
		if chErr != nil {
			return false
		}
		defer ch.Close()
		_, inspectErr := ch.QueueDeclarePassive(events.BidderStatsQueue, true, false, false, false, nil)
		return inspectErr == nil
	}, 10*time.Second, 100*time.Millisecond)

	go func() { _ = relay.Run(runCtx) }()

	sellerID, alice, bob := uuid.New(), uuid.New(), uuid.New()
	auction, err := auctionService.CreateAuction(ctx, auctions.CreateAuctionCommand{
		SellerID:    sellerID,
		Title:       "Mechanical keyboard",
		Description: "Cherry MX blue",
		StartPrice:  decimal.RequireFromString("100"),
		EndsAt:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	for _, bid := range []struct {
		bidder uuid.UUID
		amount string
	}{
		{alice, "150"},
		{bob, "160"},
		{alice, "170"},
	} {
		_, err := engine.PlaceBid(ctx, bids.PlaceBidCommand{
			AuctionID: auction.ID,
			BidderID:  bid.bidder,
			Amount:    decimal.RequireFromString(bid.amount),
		})
		require.NoError(t, err)
	}

	_, err = auctionService.CloseAuction(ctx, auctions.CloseAuctionCommand{AuctionID: auction.ID, UserID: sellerID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, statsErr := statsService.GetStats(ctx, alice)
		return statsErr == nil && stats.BidsPlaced == 2 && stats.AuctionsWon == 1
	}, 15*time.Second, 100*time.Millisecond, "alice should have two bids and one win")

	aliceStats, err := statsService.GetStats(ctx, alice)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("320").Equal(aliceStats.TotalBidAmount))

	bobStats, err := statsService.GetStats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobStats.BidsPlaced)
	assert.Equal(t, int64(0), bobStats.AuctionsWon)

	require.Eventually(t, func() bool {
		var pending int
		scanErr := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE status = 'pending'`).Scan(&pending)
		return scanErr == nil && pending == 0
	}, 5*time.Second, 100*time.Millisecond, "outbox should be drained")
}
