package bids

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/domain/auctions"
)

// Rejections. These are business outcomes, never faults, and are returned
// wrapped in a *RejectionError.
var (
	ErrAuctionNotFound = auctions.ErrAuctionNotFound
	ErrAuctionInactive = errors.New("auction is not active")
	ErrAuctionExpired  = errors.New("auction has ended")
	ErrBidTooLow       = errors.New("bid amount is below the minimum bid")
	ErrInvalidAmount   = errors.New("bid amount must be positive and at most 999999999999.99")
)

// ErrContention means every compare-and-swap attempt lost to a concurrent
// writer. It is transient: the caller may submit the same bid again.
var ErrContention = errors.New("auction is under heavy contention, retry the bid")

// ErrInvariantViolation means the store returned state that breaks the
// auction invariants. It is never retried.
var ErrInvariantViolation = errors.New("auction invariant violated")

// RejectionError carries the reason a bid was refused plus the prices a
// bidder needs to submit a valid amount.
type RejectionError struct {
	Reason       error
	AuctionID    uuid.UUID
	CurrentPrice decimal.Decimal
	MinimumBid   decimal.Decimal
}

func (e *RejectionError) Error() string {
	if errors.Is(e.Reason, ErrBidTooLow) {
		return fmt.Sprintf("%v: bid must be at least %s", e.Reason, e.MinimumBid.StringFixed(2))
	}
	return e.Reason.Error()
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// IsRejection reports whether err is a business rejection rather than a fault
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

func reject(reason error, auction *auctions.Auction, minimum decimal.Decimal) *RejectionError {
	e := &RejectionError{Reason: reason, MinimumBid: minimum}
	if auction != nil {
		e.AuctionID = auction.ID
		e.CurrentPrice = auction.CurrentPrice
	}
	return e
}
