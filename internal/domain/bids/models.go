package bids

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/pkg/events"
)

// Bid is an accepted offer. Bids are append-only and only ever written
// together with the auction update that accepted them.
type Bid struct {
	ID        uuid.UUID       `db:"id"`
	AuctionID uuid.UUID       `db:"auction_id"`
	BidderID  uuid.UUID       `db:"bidder_id"`
	Amount    decimal.Decimal `db:"amount"`
	BidTime   time.Time       `db:"bid_time"`
}

// PlaceBidCommand is a typed bid request. BidderID comes from the authenticated
// caller, never from the request body.
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
	Now       time.Time
}

// Outcome of an accepted bid
type Outcome struct {
	Bid        *Bid
	NewMinimum decimal.Decimal
	// Attempts counts compare-and-swap attempts, 1 when uncontended
	Attempts int
}

// BidCommit is one compare-and-swap: if the auction is still active at
// ExpectedVersion, set current_price and winner_id from Bid, bump the version,
// append Bid and record Event, all in one transaction.
type BidCommit struct {
	Bid             *Bid
	ExpectedVersion int64
	Event           *events.OutboxEvent
}

// NewVersion is the version the auction has after the commit succeeds
func (c *BidCommit) NewVersion() int64 {
	return c.ExpectedVersion + 1
}
