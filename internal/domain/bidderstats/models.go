package bidderstats

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidderStats is a read model built from bid.placed and auction.closed events
type BidderStats struct {
	BidderID       uuid.UUID       `db:"bidder_id"`
	BidsPlaced     int64           `db:"bids_placed"`
	AuctionsWon    int64           `db:"auctions_won"`
	TotalBidAmount decimal.Decimal `db:"total_bid_amount"`
	LastBidAt      *time.Time      `db:"last_bid_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}
