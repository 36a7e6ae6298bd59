package bidderstats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// IncrementBids counts one more bid for the bidder (upsert)
	IncrementBids(ctx context.Context, tx pgx.Tx, bidderID uuid.UUID, amount decimal.Decimal, bidTime time.Time) error

	// IncrementWins counts one more won auction for the bidder (upsert)
	IncrementWins(ctx context.Context, tx pgx.Tx, bidderID uuid.UUID) error

	// GetStats returns ErrStatsNotFound for bidders without any event
	GetStats(ctx context.Context, bidderID uuid.UUID) (*BidderStats, error)

	// MarkEventProcessed marks an event as processed to prevent duplicates
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error

	// IsEventProcessed checks if an event has already been processed
	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)
}
