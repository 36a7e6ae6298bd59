package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/livebid/internal/domain/auctions"
)

var _ auctions.Cache = (*RedisAuctionCache)(nil)

const (
	keyPrefix  = "livebid:auction:"
	defaultTTL = 30 * time.Second
)

// Each key is a hash of {version, data}. An empty data field is an
// invalidation marker: a miss for readers, but still a version floor for
// writers. The script writes only when nothing newer is stored.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisAuctionCache caches auction views as JSON with a TTL. It only serves
// reads; bid validation always goes to the database.
type RedisAuctionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAuctionCache(client *redis.Client, ttl time.Duration) *RedisAuctionCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisAuctionCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func key(auctionID uuid.UUID) string {
	return keyPrefix + auctionID.String()
}

func (c *RedisAuctionCache) Get(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	raw, err := c.client.HGet(ctx, key(auctionID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, auctions.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached auction: %w", err)
	}
	if len(raw) == 0 {
		return nil, auctions.ErrCacheMiss
	}

	var auction auctions.Auction
	if err := json.Unmarshal(raw, &auction); err != nil {
		// a corrupt entry is a miss; the next Set overwrites it
		return nil, auctions.ErrCacheMiss
	}
	return &auction, nil
}

// Set stores auction unless a newer version or invalidation is already there
func (c *RedisAuctionCache) Set(ctx context.Context, auction *auctions.Auction) error {
	raw, err := json.Marshal(auction)
	if err != nil {
		return fmt.Errorf("failed to encode auction: %w", err)
	}
	if err := c.write(ctx, auction.ID, auction.Version, raw); err != nil {
		return fmt.Errorf("failed to cache auction: %w", err)
	}
	return nil
}

// Invalidate replaces the view with a marker at version
func (c *RedisAuctionCache) Invalidate(ctx context.Context, auctionID uuid.UUID, version int64) error {
	if err := c.write(ctx, auctionID, version, nil); err != nil {
		return fmt.Errorf("failed to invalidate auction: %w", err)
	}
	return nil
}

func (c *RedisAuctionCache) write(ctx context.Context, auctionID uuid.UUID, version int64, data []byte) error {
	return setIfNotOlder.Run(ctx, c.client,
		[]string{key(auctionID)},
		strconv.FormatInt(version, 10),
		data,
		c.ttl.Milliseconds(),
	).Err()
}
