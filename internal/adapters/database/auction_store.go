package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bids"
	pkgdb "github.com/floroz/livebid/pkg/database"
)

var (
	_ auctions.Repository = (*PostgresAuctionStore)(nil)
	_ bids.Store          = (*PostgresAuctionStore)(nil)
	_ bids.BidReader      = (*PostgresAuctionStore)(nil)
)

const auctionColumns = `id, seller_id, title, description, start_price, current_price, winner_id,
	is_active, ends_at, version, last_bid_at, created_at, updated_at`

// PostgresAuctionStore implements the auction repository and the bidding
// engine's store. Bids are only written by TryApplyBid.
type PostgresAuctionStore struct {
	pool      *pgxpool.Pool
	txManager pkgdb.TransactionManager
	outbox    *PostgresOutboxRepository
}

// NewPostgresAuctionStore creates a new PostgreSQL auction store
func NewPostgresAuctionStore(pool *pgxpool.Pool, txManager pkgdb.TransactionManager, outbox *PostgresOutboxRepository) *PostgresAuctionStore {
	return &PostgresAuctionStore{
		pool:      pool,
		txManager: txManager,
		outbox:    outbox,
	}
}

// CreateAuction inserts a new auction
func (r *PostgresAuctionStore) CreateAuction(ctx context.Context, auction *auctions.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		auction.ID,
		auction.SellerID,
		auction.Title,
		auction.Description,
		auction.StartPrice,
		auction.CurrentPrice,
		auction.WinnerID,
		auction.IsActive,
		auction.EndsAt,
		auction.Version,
		auction.LastBidAt,
		auction.CreatedAt,
		auction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetAuctionByID reads a snapshot outside of any transaction
func (r *PostgresAuctionStore) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	return r.getAuctionByID(ctx, r.pool, auctionID)
}

func (r *PostgresAuctionStore) getAuctionByID(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID) (*auctions.Auction, error) {
	rows, err := db.Query(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	auction, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[auctions.Auction])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to scan auction: %w", err)
	}
	return auction, nil
}

// ListActiveAuctions returns active auctions, newest first
func (r *PostgresAuctionStore) ListActiveAuctions(ctx context.Context, limit, offset int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE is_active
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[auctions.Auction])
	if err != nil {
		return nil, fmt.Errorf("failed to scan auctions: %w", err)
	}
	return list, nil
}

// DeleteAuction deletes the auction; bids go with it through ON DELETE CASCADE
func (r *PostgresAuctionStore) DeleteAuction(ctx context.Context, auctionID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, auctionID)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotFound
	}
	return nil
}

// CloseAuction flips is_active and bumps the version so any bid that read the
// open auction loses its compare-and-swap.
func (r *PostgresAuctionStore) CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (*auctions.Auction, bool, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	query := `
		UPDATE auctions
		SET is_active = FALSE, version = version + 1, updated_at = $2
		WHERE id = $1 AND is_active
		RETURNING ` + auctionColumns
	rows, err := tx.Query(ctx, query, auctionID, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to close auction: %w", err)
	}

	closed, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[auctions.Auction])
	if errors.Is(err, pgx.ErrNoRows) {
		// already closed, or missing
		existing, getErr := r.getAuctionByID(ctx, tx, auctionID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan closed auction: %w", err)
	}

	event, err := auctions.NewClosedEvent(closed, now)
	if err != nil {
		return nil, false, err
	}
	if err := r.outbox.SaveEvent(ctx, tx, event); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return closed, true, nil
}

// ListExpiredAuctionIDs returns active auctions past their deadline, oldest deadline first
func (r *PostgresAuctionStore) ListExpiredAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM auctions
		WHERE is_active AND ends_at <= $1
		ORDER BY ends_at
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired auctions: %w", err)
	}
	return ids, nil
}
