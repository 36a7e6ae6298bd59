package auctions_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/internal/adapters/memory"
	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bids"
)

// interleavingRepo runs hook once, right after the first auction read, so a
// write lands between the service's repository read and its cache fill.
type interleavingRepo struct {
	*memory.Store
	once sync.Once
	hook func()
}

func (r *interleavingRepo) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	auction, err := r.Store.GetAuctionByID(ctx, auctionID)
	r.once.Do(r.hook)
	return auction, err
}

func TestService_GetAuction_DoesNotCacheSnapshotOlderThanWrite(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	setup := func(t *testing.T) (*memory.Store, *memory.AuctionCache, *auctions.Auction) {
		t.Helper()
		store := memory.NewStore()
		auction := &auctions.Auction{
			ID:           uuid.New(),
			SellerID:     uuid.New(),
			Title:        "Desk lamp",
			Description:  "Anglepoise 1227",
			StartPrice:   decimal.NewFromInt(100),
			CurrentPrice: decimal.NewFromInt(100),
			IsActive:     true,
			EndsAt:       time.Now().Add(time.Hour),
		}
		require.NoError(t, store.CreateAuction(ctx, auction))
		return store, memory.NewAuctionCache(), auction
	}

	t.Run("bid commits between read and fill", func(t *testing.T) {
		store, cache, auction := setup(t)
		engine := bids.NewEngine(store, cache, bids.EngineConfig{}, logger)

		repo := &interleavingRepo{Store: store}
		repo.hook = func() {
			_, err := engine.PlaceBid(ctx, bids.PlaceBidCommand{
				AuctionID: auction.ID,
				BidderID:  uuid.New(),
				Amount:    decimal.NewFromInt(150),
			})
			require.NoError(t, err)
		}
		svc := auctions.NewService(repo, cache, logger)

		first, err := svc.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, "100", first.CurrentPrice.String())

		second, err := svc.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, "150", second.CurrentPrice.String())
		assert.Equal(t, int64(1), second.Version)
		assert.NotNil(t, second.WinnerID)
	})

	t.Run("close commits between read and fill", func(t *testing.T) {
		store, cache, auction := setup(t)
		closer := auctions.NewService(store, cache, logger)

		repo := &interleavingRepo{Store: store}
		repo.hook = func() {
			_, err := closer.CloseAuction(ctx, auctions.CloseAuctionCommand{AuctionID: auction.ID, UserID: auction.SellerID})
			require.NoError(t, err)
		}
		svc := auctions.NewService(repo, cache, logger)

		_, err := svc.GetAuction(ctx, auction.ID)
		require.NoError(t, err)

		got, err := svc.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.Equal(t, auctions.StateClosed, got.State(time.Now()))
	})
}
