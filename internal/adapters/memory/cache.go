package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/livebid/internal/domain/auctions"
)

var _ auctions.Cache = (*AuctionCache)(nil)

// cacheEntry with a nil auction marks an invalidation at version
type cacheEntry struct {
	version int64
	auction *auctions.Auction
}

// AuctionCache is the in-memory counterpart of the Redis cache, with the same
// version rules and no expiry.
type AuctionCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
}

func NewAuctionCache() *AuctionCache {
	return &AuctionCache{entries: make(map[uuid.UUID]cacheEntry)}
}

func (c *AuctionCache) Get(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[auctionID]
	if !ok || entry.auction == nil {
		return nil, auctions.ErrCacheMiss
	}
	return entry.auction.Clone(), nil
}

func (c *AuctionCache) Set(ctx context.Context, auction *auctions.Auction) error {
	c.put(auction.ID, cacheEntry{version: auction.Version, auction: auction.Clone()})
	return nil
}

func (c *AuctionCache) Invalidate(ctx context.Context, auctionID uuid.UUID, version int64) error {
	c.put(auctionID, cacheEntry{version: version})
	return nil
}

func (c *AuctionCache) put(auctionID uuid.UUID, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[auctionID]; ok && current.version > entry.version {
		return
	}
	c.entries[auctionID] = entry
}
