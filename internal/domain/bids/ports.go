package bids

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/livebid/internal/domain/auctions"
)

// Store is the per-auction atomic storage the engine runs against
type Store interface {
	// GetAuctionByID returns a consistent snapshot including its version,
	// or auctions.ErrAuctionNotFound
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error)

	// TryApplyBid applies commit only if the stored version still equals
	// commit.ExpectedVersion and the auction is active. It returns false
	// without mutating anything when the version moved.
	TryApplyBid(ctx context.Context, commit *BidCommit) (bool, error)

	// CloseAuction is idempotent, see auctions.Repository
	CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (*auctions.Auction, bool, error)
}

// BidReader reads the bid log
type BidReader interface {
	// ListBidsByAuctionID returns bids most recent first
	ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// GetLatestBid returns the most recent bid, or nil when there is none
	GetLatestBid(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
}

// CacheInvalidator drops cached auction views after the engine changed an auction.
// version is the auction version the change committed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, auctionID uuid.UUID, version int64) error
}
