package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/domain/bidderstats"
)

var _ bidderstats.Repository = (*BidderStatsRepository)(nil)

type BidderStatsRepository struct {
	pool *pgxpool.Pool
}

func NewBidderStatsRepository(pool *pgxpool.Pool) *BidderStatsRepository {
	return &BidderStatsRepository{pool: pool}
}

// IncrementBids upserts the bidder's row. last_bid_at only moves forward so
// out-of-order deliveries cannot rewind it.
func (r *BidderStatsRepository) IncrementBids(ctx context.Context, tx pgx.Tx, bidderID uuid.UUID, amount decimal.Decimal, bidTime time.Time) error {
	query := `
		INSERT INTO bidder_stats (bidder_id, bids_placed, total_bid_amount, last_bid_at, updated_at)
		VALUES ($1, 1, $2, $3, NOW())
		ON CONFLICT (bidder_id) DO UPDATE SET
			bids_placed = bidder_stats.bids_placed + 1,
			total_bid_amount = bidder_stats.total_bid_amount + EXCLUDED.total_bid_amount,
			last_bid_at = GREATEST(bidder_stats.last_bid_at, EXCLUDED.last_bid_at),
			updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query,
		bidderID, // $1
		amount,   // $2
		bidTime,  // $3
	)
	if err != nil {
		return fmt.Errorf("failed to increment bidder stats: %w", err)
	}
	return nil
}

func (r *BidderStatsRepository) IncrementWins(ctx context.Context, tx pgx.Tx, bidderID uuid.UUID) error {
	query := `
		INSERT INTO bidder_stats (bidder_id, auctions_won, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (bidder_id) DO UPDATE SET
			auctions_won = bidder_stats.auctions_won + 1,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, bidderID); err != nil {
		return fmt.Errorf("failed to increment auctions won: %w", err)
	}
	return nil
}

func (r *BidderStatsRepository) GetStats(ctx context.Context, bidderID uuid.UUID) (*bidderstats.BidderStats, error) {
	query := `
		SELECT bidder_id, bids_placed, auctions_won, total_bid_amount, last_bid_at, updated_at
		FROM bidder_stats
		WHERE bidder_id = $1
	`
	var stats bidderstats.BidderStats
	err := r.pool.QueryRow(ctx, query, bidderID).Scan(
		&stats.BidderID,
		&stats.BidsPlaced,
		&stats.AuctionsWon,
		&stats.TotalBidAmount,
		&stats.LastBidAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bidderstats.ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to get bidder stats: %w", err)
	}
	return &stats, nil
}

func (r *BidderStatsRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	query := `INSERT INTO processed_events (event_id) VALUES ($1)`
	_, err := tx.Exec(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *BidderStatsRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_id = $1`
	var exists int
	err := tx.QueryRow(ctx, query, eventID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return true, nil
}
