package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/payloads"
	"github.com/floroz/livebid/pkg/events"
)

const (
	DefaultMaxAttempts = 5
)

// DefaultMinIncrement is one unit of currency
var DefaultMinIncrement = decimal.NewFromInt(1)

// EngineConfig tunes bid acceptance
type EngineConfig struct {
	MinIncrement decimal.Decimal
	MaxAttempts  int
}

// Engine accepts or rejects bids. It holds no lock: concurrent bids on the same
// auction are serialized by the store's compare-and-swap and the loser re-reads
// and re-validates against the new price.
type Engine struct {
	store        Store
	cache        CacheInvalidator
	minIncrement decimal.Decimal
	maxAttempts  int
	logger       *slog.Logger
}

// NewEngine creates a bidding engine. cache may be nil.
func NewEngine(store Store, cache CacheInvalidator, cfg EngineConfig, logger *slog.Logger) *Engine {
	if !cfg.MinIncrement.IsPositive() {
		cfg.MinIncrement = DefaultMinIncrement
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		store:        store,
		cache:        cache,
		minIncrement: cfg.MinIncrement,
		maxAttempts:  cfg.MaxAttempts,
		logger:       logger,
	}
}

// MinimumBid is the smallest amount the next bid on auction may carry
func (e *Engine) MinimumBid(auction *auctions.Auction) decimal.Decimal {
	return auction.CurrentPrice.Add(e.minIncrement)
}

// PlaceBid runs the read, validate, compare-and-swap loop. Rejections are
// returned as *RejectionError; ErrContention once the attempts are used up.
// Nothing with an external side effect happens between the read and the commit,
// so an aborted call leaves no partial state behind.
func (e *Engine) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Outcome, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var previous *auctions.Auction
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		auction, err := e.store.GetAuctionByID(ctx, cmd.AuctionID)
		if err != nil {
			if errors.Is(err, auctions.ErrAuctionNotFound) {
				return nil, &RejectionError{Reason: ErrAuctionNotFound, AuctionID: cmd.AuctionID}
			}
			return nil, fmt.Errorf("failed to read auction: %w", err)
		}

		if err := e.checkSnapshot(auction, previous); err != nil {
			return nil, err
		}
		previous = auction

		if err := e.validate(ctx, auction, cmd.Amount, now); err != nil {
			return nil, err
		}

		commit, err := newBidCommit(auction, cmd, now)
		if err != nil {
			return nil, err
		}

		applied, err := e.store.TryApplyBid(ctx, commit)
		if err != nil {
			return nil, fmt.Errorf("failed to apply bid: %w", err)
		}
		if !applied {
			e.logger.Debug("Bid lost compare-and-swap, retrying",
				"auction_id", cmd.AuctionID,
				"expected_version", auction.Version,
				"attempt", attempt,
			)
			continue
		}

		e.invalidate(ctx, cmd.AuctionID, commit.NewVersion())
		e.logger.Info("Bid accepted",
			"auction_id", cmd.AuctionID,
			"bid_id", commit.Bid.ID,
			"bidder_id", cmd.BidderID,
			"amount", commit.Bid.Amount.String(),
			"version", commit.NewVersion(),
			"attempts", attempt,
		)
		return &Outcome{
			Bid:        commit.Bid,
			NewMinimum: commit.Bid.Amount.Add(e.minIncrement),
			Attempts:   attempt,
		}, nil
	}

	e.logger.Warn("Bid gave up under contention", "auction_id", cmd.AuctionID, "attempts", e.maxAttempts)
	return nil, fmt.Errorf("%w: %d attempts on auction %s", ErrContention, e.maxAttempts, cmd.AuctionID)
}

// validate applies the rejection rules in order: inactive, expired, too low, out of range
func (e *Engine) validate(ctx context.Context, auction *auctions.Auction, amount decimal.Decimal, now time.Time) error {
	minimum := e.MinimumBid(auction)

	if !auction.IsActive {
		return reject(ErrAuctionInactive, auction, minimum)
	}

	if auction.HasEnded(now) {
		e.expire(ctx, auction.ID, now)
		return reject(ErrAuctionExpired, auction, minimum)
	}

	if amount.LessThan(minimum) {
		return reject(ErrBidTooLow, auction, minimum)
	}

	// not positive is only reachable when the current price can be zero or negative
	if !amount.IsPositive() || amount.GreaterThan(auctions.MaxPrice) {
		return reject(ErrInvalidAmount, auction, minimum)
	}

	return nil
}

// expire closes an auction whose deadline passed. The bid is rejected either
// way, so a failed close is only logged and left to the sweeper.
func (e *Engine) expire(ctx context.Context, auctionID uuid.UUID, now time.Time) {
	auction, closed, err := e.store.CloseAuction(ctx, auctionID, now)
	if err != nil {
		e.logger.Warn("Failed to close expired auction", "auction_id", auctionID, "error", err)
		return
	}
	if closed {
		e.invalidate(ctx, auctionID, auction.Version)
		e.logger.Info("Auction closed on late bid", "auction_id", auctionID)
	}
}

// checkSnapshot refuses to keep going on state that could only come from a broken store
func (e *Engine) checkSnapshot(auction, previous *auctions.Auction) error {
	var problem string
	switch {
	case auction.Version < 0:
		problem = "negative version"
	case auction.CurrentPrice.LessThan(auction.StartPrice):
		problem = "current price below start price"
	case auction.WinnerID == nil && !auction.CurrentPrice.Equal(auction.StartPrice):
		problem = "price moved without a winner"
	case previous != nil && auction.Version < previous.Version:
		problem = "version went backwards"
	case previous != nil && auction.CurrentPrice.LessThan(previous.CurrentPrice):
		problem = "current price went backwards"
	default:
		return nil
	}

	e.logger.Error("Auction invariant violated",
		"auction_id", auction.ID,
		"problem", problem,
		"version", auction.Version,
		"current_price", auction.CurrentPrice.String(),
	)
	return fmt.Errorf("%w: auction %s: %s", ErrInvariantViolation, auction.ID, problem)
}

func (e *Engine) invalidate(ctx context.Context, auctionID uuid.UUID, version int64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, auctionID, version); err != nil {
		e.logger.Warn("Auction cache invalidation failed", "auction_id", auctionID, "error", err)
	}
}

// newBidCommit builds the bid row and its bid.placed event for one attempt.
// BidTime never goes below the previous accepted bid so bid order and time order agree.
func newBidCommit(auction *auctions.Auction, cmd PlaceBidCommand, now time.Time) (*BidCommit, error) {
	bidTime := now
	if auction.LastBidAt != nil && auction.LastBidAt.After(bidTime) {
		bidTime = *auction.LastBidAt
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: auction.ID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		BidTime:   bidTime,
	}

	payload := &payloads.BidPlaced{
		EventID:   uuid.New(),
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		BidTime:   bid.BidTime,
		Version:   auction.Version + 1,
	}
	body, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to build bid.placed event: %w", err)
	}

	return &BidCommit{
		Bid:             bid,
		ExpectedVersion: auction.Version,
		Event:           events.NewOutboxEvent(payload.EventID, auction.ID, payloads.EventBidPlaced, body, now),
	}, nil
}
