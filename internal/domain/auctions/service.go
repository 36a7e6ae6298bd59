package auctions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrInvalidTitle       = errors.New("title is required")
	ErrInvalidDescription = errors.New("description is required")
	ErrInvalidStartPrice  = errors.New("start price must be greater than 0 and at most 999999999999.99")
	ErrInvalidEndTime     = errors.New("end time must be in the future")
	ErrUnauthorized       = errors.New("unauthorized: only the seller can perform this action")
	ErrCacheMiss          = errors.New("auction not cached")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CreateAuctionCommand represents the command to list a new auction
type CreateAuctionCommand struct {
	SellerID    uuid.UUID
	Title       string
	Description string
	StartPrice  decimal.Decimal
	EndsAt      time.Time
}

// DeleteAuctionCommand represents the command to delete an auction
type DeleteAuctionCommand struct {
	AuctionID uuid.UUID
	UserID    uuid.UUID
}

// CloseAuctionCommand represents the command to close an auction early
type CloseAuctionCommand struct {
	AuctionID uuid.UUID
	UserID    uuid.UUID
}

// ListAuctionsQuery represents pagination parameters for listing auctions
type ListAuctionsQuery struct {
	Limit  int
	Offset int
}

// Service implements auction listing management
type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new auction service. cache may be nil.
func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// CreateAuction validates and stores a new open auction
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return nil, ErrInvalidDescription
	}

	startPrice := cmd.StartPrice.Round(2)
	if !startPrice.IsPositive() || startPrice.GreaterThan(MaxPrice) {
		return nil, ErrInvalidStartPrice
	}

	now := s.now().UTC()
	if !cmd.EndsAt.After(now) {
		return nil, ErrInvalidEndTime
	}

	auction := &Auction{
		ID:           uuid.New(),
		SellerID:     cmd.SellerID,
		Title:        title,
		Description:  description,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		IsActive:     true,
		EndsAt:       cmd.EndsAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	return auction, nil
}

// GetAuction reads through the cache
func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	cached, err := s.cache.Get(ctx, auctionID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Auction cache read failed", "auction_id", auctionID, "error", err)
	}

	auction, err := s.repo.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, auction); err != nil {
		s.logger.Warn("Auction cache write failed", "auction_id", auctionID, "error", err)
	}
	return auction, nil
}

// ListAuctions retrieves active auctions with pagination
func (s *Service) ListAuctions(ctx context.Context, query ListAuctionsQuery) ([]*Auction, error) {
	limit := query.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset := max(query.Offset, 0)

	list, err := s.repo.ListActiveAuctions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return list, nil
}

// DeleteAuction removes an auction together with its bids
func (s *Service) DeleteAuction(ctx context.Context, cmd DeleteAuctionCommand) error {
	auction, err := s.repo.GetAuctionByID(ctx, cmd.AuctionID)
	if err != nil {
		return err
	}

	if !auction.IsOwnedBy(cmd.UserID) {
		return ErrUnauthorized
	}

	if err := s.repo.DeleteAuction(ctx, cmd.AuctionID); err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}

	s.invalidate(ctx, cmd.AuctionID, VersionDeleted)
	s.logger.Info("Auction deleted", "auction_id", cmd.AuctionID, "seller_id", cmd.UserID)
	return nil
}

// CloseAuction lets the seller end an auction before its deadline. Closing an
// already closed auction succeeds and returns its final state.
func (s *Service) CloseAuction(ctx context.Context, cmd CloseAuctionCommand) (*Auction, error) {
	auction, err := s.repo.GetAuctionByID(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if !auction.IsOwnedBy(cmd.UserID) {
		return nil, ErrUnauthorized
	}

	auction, _, err = s.close(ctx, cmd.AuctionID, s.now().UTC())
	return auction, err
}

// CloseExpired closes up to limit active auctions whose deadline passed and
// returns how many this call closed.
func (s *Service) CloseExpired(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()

	ids, err := s.repo.ListExpiredAuctionIDs(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	closed := 0
	for _, id := range ids {
		_, ok, err := s.close(ctx, id, now)
		if errors.Is(err, ErrAuctionNotFound) {
			// deleted since listing
			continue
		}
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (s *Service) close(ctx context.Context, auctionID uuid.UUID, now time.Time) (*Auction, bool, error) {
	auction, closed, err := s.repo.CloseAuction(ctx, auctionID, now)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to close auction: %w", err)
	}

	if closed {
		s.invalidate(ctx, auctionID, auction.Version)
		s.logger.Info("Auction closed",
			"auction_id", auctionID,
			"final_price", auction.CurrentPrice.String(),
			"has_winner", auction.HasBids(),
		)
	}
	return auction, closed, nil
}

func (s *Service) invalidate(ctx context.Context, auctionID uuid.UUID, version int64) {
	if err := s.cache.Invalidate(ctx, auctionID, version); err != nil {
		s.logger.Warn("Auction cache invalidation failed", "auction_id", auctionID, "error", err)
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*Auction, error)   { return nil, ErrCacheMiss }
func (noopCache) Set(context.Context, *Auction) error                { return nil }
func (noopCache) Invalidate(context.Context, uuid.UUID, int64) error { return nil }
