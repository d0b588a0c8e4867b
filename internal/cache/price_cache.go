package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceCacheEntry represents a cached listing ask price with metadata
type PriceCacheEntry struct {
	Price     decimal.Decimal `json:"price"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// PriceCacheStats tracks cache performance metrics
type PriceCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// ListingPriceCache keeps the last observed ask price of each portal listing
// in Redis so the next day's snapshot can detect price cuts without a
// database round trip. Keys carry the observation day; entries expire after
// the configured TTL, at which point detection falls back to the store.
type ListingPriceCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *PriceCacheStats
	prefix string
}

// NewListingPriceCache creates a new Redis-based listing price cache
func NewListingPriceCache(redisClient *redis.Client, ttl time.Duration) *ListingPriceCache {
	return &ListingPriceCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &PriceCacheStats{},
		prefix: "listing_price:",
	}
}

func (c *ListingPriceCache) key(orgID, source, externalID string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", c.prefix, orgID, source, externalID, day.Format("2006-01-02"))
}

// Get retrieves the ask price observed for a listing on the given day
func (c *ListingPriceCache) Get(ctx context.Context, orgID, source, externalID string, day time.Time) (*decimal.Decimal, bool) {
	cacheKey := c.key(orgID, source, externalID, day)

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		// Cache miss
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting price for %s: %v", cacheKey, err)
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}

	var entry PriceCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached price for %s: %v", cacheKey, err)
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}

	// Cache hit
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return &entry.Price, true
}

// Set stores the ask price observed for a listing on the given day
func (c *ListingPriceCache) Set(ctx context.Context, orgID, source, externalID string, day time.Time, price decimal.Decimal) {
	cacheKey := c.key(orgID, source, externalID, day)

	now := time.Now()
	entry := PriceCacheEntry{
		Price:     price,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing price for %s: %v", cacheKey, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		log.Printf("Redis error setting price for %s: %v", cacheKey, err)
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *ListingPriceCache) GetStats() PriceCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return PriceCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *ListingPriceCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	log.Printf("Listing Price Cache Stats - Hits: %d, Misses: %d, Sets: %d, Hit Rate: %.2f%%",
		stats.Hits, stats.Misses, stats.Sets, hitRate)
}

// Clear removes all cached listing prices (useful for testing or cache invalidation)
func (c *ListingPriceCache) Clear(ctx context.Context) error {
	pattern := c.prefix + "*"

	// Collect matching keys using SCAN for better performance
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}

	log.Printf("Cleared %d listing price cache entries", len(keys))
	return nil
}
