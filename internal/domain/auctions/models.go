package auctions

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/payloads"
	"github.com/floroz/livebid/pkg/events"
)

// MaxPrice is the largest amount the NUMERIC(14,2) price columns hold
var MaxPrice = decimal.RequireFromString("999999999999.99")

// State is the derived lifecycle state of an auction
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Auction is the authoritative record of an auction's price and winner.
// CurrentPrice, WinnerID, Version and LastBidAt only change through an accepted bid.
type Auction struct {
	ID           uuid.UUID       `db:"id"`
	SellerID     uuid.UUID       `db:"seller_id"`
	Title        string          `db:"title"`
	Description  string          `db:"description"`
	StartPrice   decimal.Decimal `db:"start_price"`
	CurrentPrice decimal.Decimal `db:"current_price"`
	WinnerID     *uuid.UUID      `db:"winner_id"`
	IsActive     bool            `db:"is_active"`
	EndsAt       time.Time       `db:"ends_at"`
	Version      int64           `db:"version"`
	LastBidAt    *time.Time      `db:"last_bid_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// IsOwnedBy checks if the given user is the seller of this auction
func (a *Auction) IsOwnedBy(userID uuid.UUID) bool {
	return a.SellerID == userID
}

// HasEnded reports whether the deadline has passed. A bid placed exactly at EndsAt is late.
func (a *Auction) HasEnded(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// State is closed once the auction was closed explicitly or its deadline passed,
// even if the sweeper has not flipped IsActive yet.
func (a *Auction) State(now time.Time) State {
	if a.IsActive && !a.HasEnded(now) {
		return StateOpen
	}
	return StateClosed
}

// HasBids reports whether any bid was accepted
func (a *Auction) HasBids() bool {
	return a.WinnerID != nil
}

// Clone returns a deep copy so callers never share pointers with a store
func (a *Auction) Clone() *Auction {
	c := *a
	if a.WinnerID != nil {
		w := *a.WinnerID
		c.WinnerID = &w
	}
	if a.LastBidAt != nil {
		t := *a.LastBidAt
		c.LastBidAt = &t
	}
	return &c
}

// NewClosedEvent builds the outbox event recorded by the first close of a.
// Stores call it inside the closing transaction with the already closed row.
func NewClosedEvent(a *Auction, now time.Time) (*events.OutboxEvent, error) {
	payload := &payloads.AuctionClosed{
		EventID:    uuid.New(),
		AuctionID:  a.ID,
		SellerID:   a.SellerID,
		WinnerID:   a.WinnerID,
		FinalPrice: a.CurrentPrice,
		ClosedAt:   now,
	}

	body, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to build auction.closed event: %w", err)
	}
	return events.NewOutboxEvent(payload.EventID, a.ID, payloads.EventAuctionClosed, body, now), nil
}
