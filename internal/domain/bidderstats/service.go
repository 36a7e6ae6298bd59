package bidderstats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/payloads"
	"github.com/floroz/livebid/pkg/database"
)

var ErrStatsNotFound = errors.New("bidder stats not found")

type Service struct {
	repo      Repository
	txManager database.TransactionManager
}

func NewService(repo Repository, txManager database.TransactionManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

func (s *Service) ProcessBidPlaced(ctx context.Context, event *payloads.BidPlaced) error {
	return s.once(ctx, event.EventID, func(tx pgx.Tx) error {
		if err := s.repo.IncrementBids(ctx, tx, event.BidderID, event.Amount, event.BidTime); err != nil {
			return fmt.Errorf("failed to increment bids: %w", err)
		}
		return nil
	})
}

// ProcessAuctionClosed credits the winner, if any
func (s *Service) ProcessAuctionClosed(ctx context.Context, event *payloads.AuctionClosed) error {
	return s.once(ctx, event.EventID, func(tx pgx.Tx) error {
		if event.WinnerID == nil {
			return nil
		}
		if err := s.repo.IncrementWins(ctx, tx, *event.WinnerID); err != nil {
			return fmt.Errorf("failed to increment wins: %w", err)
		}
		return nil
	})
}

// GetStats returns zeroed stats for bidders that never bid
func (s *Service) GetStats(ctx context.Context, bidderID uuid.UUID) (*BidderStats, error) {
	stats, err := s.repo.GetStats(ctx, bidderID)
	if errors.Is(err, ErrStatsNotFound) {
		return &BidderStats{BidderID: bidderID, TotalBidAmount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bidder stats: %w", err)
	}
	return stats, nil
}

// once applies fn and records eventID in the same transaction; redelivered
// events are acknowledged without being applied twice.
func (s *Service) once(ctx context.Context, eventID uuid.UUID, fn func(tx pgx.Tx) error) error {
	return database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		processed, err := s.repo.IsEventProcessed(ctx, tx, eventID)
		if err != nil {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}
		if processed {
			return nil
		}

		if err := fn(tx); err != nil {
			return err
		}

		if err := s.repo.MarkEventProcessed(ctx, tx, eventID); err != nil {
			return fmt.Errorf("failed to mark event as processed: %w", err)
		}
		return nil
	})
}
