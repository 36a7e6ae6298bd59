package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/livebid/internal/domain/bids"
)

const bidColumns = `id, auction_id, bidder_id, amount, bid_time`

// TryApplyBid is the compare-and-swap. The conditional UPDATE either matches
// the expected version and moves the price, or matches nothing and the whole
// transaction is rolled back. The bid row and its outbox event are only
// written after the UPDATE matched.
func (r *PostgresAuctionStore) TryApplyBid(ctx context.Context, commit *bids.BidCommit) (bool, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	bid := commit.Bid
	query := `
		UPDATE auctions
		SET current_price = $1,
			winner_id = $2,
			version = version + 1,
			last_bid_at = $3,
			updated_at = $3
		WHERE id = $4
			AND version = $5
			AND is_active
			AND current_price < $1
	`
	result, err := tx.Exec(ctx, query,
		bid.Amount,             // $1
		bid.BidderID,           // $2
		bid.BidTime,            // $3
		bid.AuctionID,          // $4
		commit.ExpectedVersion, // $5
	)
	if err != nil {
		return false, fmt.Errorf("failed to update auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.BidTime,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert bid: %w", err)
	}

	if commit.Event != nil {
		if err := r.outbox.SaveEvent(ctx, tx, commit.Event); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ListBidsByAuctionID returns bids most recent first
func (r *PostgresAuctionStore) ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY bid_time DESC, amount DESC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[bids.Bid])
	if err != nil {
		return nil, fmt.Errorf("failed to scan bids: %w", err)
	}
	return list, nil
}

// GetLatestBid returns nil when the auction has no bids
func (r *PostgresAuctionStore) GetLatestBid(ctx context.Context, auctionID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY bid_time DESC, amount DESC
		LIMIT 1
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bid: %w", err)
	}

	bid, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[bids.Bid])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bid: %w", err)
	}
	return bid, nil
}
