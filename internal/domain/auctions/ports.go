package auctions

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for auction persistence
type Repository interface {
	// CreateAuction inserts a new auction
	CreateAuction(ctx context.Context, auction *Auction) error

	// GetAuctionByID returns a consistent snapshot or ErrAuctionNotFound
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// ListActiveAuctions returns active auctions, newest first
	ListActiveAuctions(ctx context.Context, limit, offset int) ([]*Auction, error)

	// DeleteAuction removes the auction and, by cascade, its bids
	DeleteAuction(ctx context.Context, auctionID uuid.UUID) error

	// CloseAuction sets is_active = false and bumps the version. The call that
	// performs the transition also records the auction.closed outbox event in the
	// same transaction and reports closed = true; later calls are no-ops.
	CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (auction *Auction, closed bool, err error)

	// ListExpiredAuctionIDs returns active auctions whose deadline is at or before now
	ListExpiredAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Cache holds read-only auction views. It is never consulted when validating a bid.
// Entries are versioned: Set never replaces a newer entry, and Invalidate leaves
// a marker at the committed version so a snapshot read before the change
// cannot be written back.
type Cache interface {
	// Get returns ErrCacheMiss when the auction is not cached
	Get(ctx context.Context, auctionID uuid.UUID) (*Auction, error)
	Set(ctx context.Context, auction *Auction) error
	// Invalidate drops the view; version is the auction version after the change
	Invalidate(ctx context.Context, auctionID uuid.UUID, version int64) error
}

// VersionDeleted invalidates an auction for good
const VersionDeleted int64 = math.MaxInt64
