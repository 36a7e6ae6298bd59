// Package memory is a concurrency-safe in-memory auction store. It implements
// the same ports as the Postgres adapter and backs the unit tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bids"
	"github.com/floroz/livebid/pkg/events"
)

var (
	_ auctions.Repository = (*Store)(nil)
	_ bids.Store          = (*Store)(nil)
	_ bids.BidReader      = (*Store)(nil)
)

// Store keeps auctions, their bids and the outbox in maps guarded by one mutex.
// The mutex is only held for the duration of a single map operation, which
// plays the role of a database row update.
type Store struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*auctions.Auction
	bids     map[uuid.UUID][]*bids.Bid // auction id -> bids in acceptance order
	outbox   []*events.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]*auctions.Auction),
		bids:     make(map[uuid.UUID][]*bids.Bid),
	}
}

func (s *Store) CreateAuction(ctx context.Context, auction *auctions.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions[auction.ID] = auction.Clone()
	return nil
}

func (s *Store) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, auctions.ErrAuctionNotFound
	}
	return auction.Clone(), nil
}

func (s *Store) ListActiveAuctions(ctx context.Context, limit, offset int) ([]*auctions.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*auctions.Auction
	for _, a := range s.auctions {
		if a.IsActive {
			active = append(active, a.Clone())
		}
	}
	slices.SortFunc(active, func(a, b *auctions.Auction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset >= len(active) {
		return []*auctions.Auction{}, nil
	}
	return active[offset:min(offset+limit, len(active))], nil
}

func (s *Store) DeleteAuction(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return auctions.ErrAuctionNotFound
	}
	delete(s.auctions, auctionID)
	delete(s.bids, auctionID)
	return nil
}

func (s *Store) CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (*auctions.Auction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, false, auctions.ErrAuctionNotFound
	}
	if !auction.IsActive {
		return auction.Clone(), false, nil
	}

	closed := auction.Clone()
	closed.IsActive = false
	closed.Version++
	closed.UpdatedAt = now

	event, err := auctions.NewClosedEvent(closed, now)
	if err != nil {
		return nil, false, err
	}

	s.auctions[auctionID] = closed
	s.outbox = append(s.outbox, event)
	return closed.Clone(), true, nil
}

// ListExpiredAuctionIDs orders by deadline, oldest first, like the Postgres store
func (s *Store) ListExpiredAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	var expired []*auctions.Auction
	for _, a := range s.auctions {
		if a.IsActive && a.HasEnded(now) {
			expired = append(expired, a)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(expired, func(a, b *auctions.Auction) int {
		return a.EndsAt.Compare(b.EndsAt)
	})

	ids := make([]uuid.UUID, 0, min(limit, len(expired)))
	for _, a := range expired[:min(limit, len(expired))] {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *Store) TryApplyBid(ctx context.Context, commit *bids.BidCommit) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[commit.Bid.AuctionID]
	if !ok || !auction.IsActive || auction.Version != commit.ExpectedVersion {
		return false, nil
	}

	updated := auction.Clone()
	winner := commit.Bid.BidderID
	bidTime := commit.Bid.BidTime
	updated.CurrentPrice = commit.Bid.Amount
	updated.WinnerID = &winner
	updated.Version = commit.NewVersion()
	updated.LastBidAt = &bidTime
	updated.UpdatedAt = bidTime

	bid := *commit.Bid
	s.auctions[auction.ID] = updated
	s.bids[auction.ID] = append(s.bids[auction.ID], &bid)
	if commit.Event != nil {
		s.outbox = append(s.outbox, commit.Event)
	}
	return true, nil
}

func (s *Store) ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accepted := s.bids[auctionID]
	list := make([]*bids.Bid, 0, len(accepted))
	for i := len(accepted) - 1; i >= 0; i-- {
		b := *accepted[i]
		list = append(list, &b)
	}
	return list, nil
}

func (s *Store) GetLatestBid(ctx context.Context, auctionID uuid.UUID) (*bids.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accepted := s.bids[auctionID]
	if len(accepted) == 0 {
		return nil, nil
	}
	b := *accepted[len(accepted)-1]
	return &b, nil
}

// OutboxEvents returns a copy of every event recorded so far
func (s *Store) OutboxEvents() []*events.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.outbox)
}
