//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/internal/adapters/cache"
	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/pkg/testhelpers"
)

func newAuction(version int64, price string) *auctions.Auction {
	return &auctions.Auction{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "Typewriter",
		Description:  "Olivetti Lettera 22",
		StartPrice:   decimal.RequireFromString("80.00"),
		CurrentPrice: decimal.RequireFromString(price),
		IsActive:     true,
		EndsAt:       time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
		Version:      version,
	}
}

func TestRedisAuctionCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	client, err := cache.NewRedisClient(ctx, testhelpers.NewRedis(t))
	require.NoError(t, err)
	defer client.Close()

	c := cache.NewRedisAuctionCache(client, time.Minute)

	t.Run("round trip and invalidate", func(t *testing.T) {
		winner := uuid.New()
		auction := newAuction(3, "95.50")
		auction.WinnerID = &winner

		_, err := c.Get(ctx, auction.ID)
		assert.ErrorIs(t, err, auctions.ErrCacheMiss)

		require.NoError(t, c.Set(ctx, auction))

		got, err := c.Get(ctx, auction.ID)
		require.NoError(t, err)
		assert.True(t, auction.CurrentPrice.Equal(got.CurrentPrice))
		assert.Equal(t, winner, *got.WinnerID)
		assert.Equal(t, int64(3), got.Version)
		assert.True(t, auction.EndsAt.Equal(got.EndsAt))

		require.NoError(t, c.Invalidate(ctx, auction.ID, 4))
		_, err = c.Get(ctx, auction.ID)
		assert.ErrorIs(t, err, auctions.ErrCacheMiss)

		// invalidating a missing key is fine
		assert.NoError(t, c.Invalidate(ctx, uuid.New(), 1))
	})

	t.Run("snapshot older than an invalidation is not written back", func(t *testing.T) {
		stale := newAuction(0, "80.00")

		require.NoError(t, c.Invalidate(ctx, stale.ID, 1))
		require.NoError(t, c.Set(ctx, stale))

		_, err := c.Get(ctx, stale.ID)
		assert.ErrorIs(t, err, auctions.ErrCacheMiss)

		fresh := *stale
		fresh.Version = 1
		fresh.CurrentPrice = decimal.RequireFromString("150.00")
		require.NoError(t, c.Set(ctx, &fresh))

		got, err := c.Get(ctx, stale.ID)
		require.NoError(t, err)
		assert.True(t, fresh.CurrentPrice.Equal(got.CurrentPrice))
	})

	t.Run("newer entry is kept", func(t *testing.T) {
		newer := newAuction(5, "120.00")
		require.NoError(t, c.Set(ctx, newer))

		older := *newer
		older.Version = 4
		older.CurrentPrice = decimal.RequireFromString("110.00")
		require.NoError(t, c.Set(ctx, &older))

		// a late invalidation for an older change does not evict it either
		require.NoError(t, c.Invalidate(ctx, newer.ID, 4))

		got, err := c.Get(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Version)
	})

	t.Run("deleted auctions stay uncached", func(t *testing.T) {
		auction := newAuction(7, "90.00")
		require.NoError(t, c.Invalidate(ctx, auction.ID, auctions.VersionDeleted))
		require.NoError(t, c.Set(ctx, auction))

		_, err := c.Get(ctx, auction.ID)
		assert.ErrorIs(t, err, auctions.ErrCacheMiss)
	})
}
