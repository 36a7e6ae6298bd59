package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/floroz/livebid/internal/domain/auctions"
)

// QueryService serves read-only bid queries. The auction row is authoritative
// for price and winner; the bid table is the audit log behind it.
type QueryService struct {
	store  Store
	reader BidReader
	logger *slog.Logger
}

func NewQueryService(store Store, reader BidReader, logger *slog.Logger) *QueryService {
	return &QueryService{
		store:  store,
		reader: reader,
		logger: logger,
	}
}

// GetBids returns the bids of an auction, most recent first
func (s *QueryService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	if _, err := s.getAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	list, err := s.reader.ListBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return list, nil
}

// GetHighestBid returns the winning bid so far, or nil if nobody has bid.
// The auction is read before the log, and a bid row is committed together
// with its auction update, so the latest bid can only be newer than the
// snapshot, never older. Anything else means the two diverged.
func (s *QueryService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*Bid, error) {
	auction, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	latest, err := s.reader.GetLatestBid(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest bid: %w", err)
	}

	if latest == nil {
		if !auction.HasBids() {
			return nil, nil
		}
		// deleted in between?
		if _, err := s.getAuction(ctx, auctionID); err != nil {
			return nil, err
		}
		return nil, s.diverged(auction, "auction has a winner but no bids")
	}

	switch {
	case latest.Amount.GreaterThan(auction.CurrentPrice):
		// accepted after the snapshot was taken
		return latest, nil
	case !auction.HasBids():
		return nil, s.diverged(auction, "bid exists but auction has no winner")
	case latest.Amount.Equal(auction.CurrentPrice) && latest.BidderID == *auction.WinnerID:
		return latest, nil
	default:
		return nil, s.diverged(auction, "latest bid does not match current price and winner")
	}
}

func (s *QueryService) getAuction(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return nil, &RejectionError{Reason: ErrAuctionNotFound, AuctionID: auctionID}
		}
		return nil, fmt.Errorf("failed to read auction: %w", err)
	}
	return auction, nil
}

func (s *QueryService) diverged(auction *auctions.Auction, problem string) error {
	s.logger.Error("Auction invariant violated",
		"auction_id", auction.ID,
		"problem", problem,
		"current_price", auction.CurrentPrice.String(),
	)
	return fmt.Errorf("%w: auction %s: %s", ErrInvariantViolation, auction.ID, problem)
}
