// Package results caches the latest verification result per ticket in Redis.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

// ErrNotFound is returned when no result is cached for a ticket.
var ErrNotFound = errors.New("results: no cached result for ticket")

const (
	keyPrefix  = "stagehand:result:"
	recentKey  = "stagehand:results:recent"
	recentSize = 100
)

// DefaultTTL is used when the cache is created with a non-positive ttl.
const DefaultTTL = 7 * 24 * time.Hour

// Cache stores result documents keyed by ticket id.
type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewCache wraps a Redis client.
func NewCache(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func resultKey(ticketID string) string {
	return keyPrefix + ticketID
}

// Put stores result as the latest for its ticket and records it in the
// recent list.
func (c *Cache) Put(ctx context.Context, result *types.Result) error {
	raw, err := sonic.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, resultKey(result.TicketID), raw, c.ttl)
		p.ZAdd(ctx, recentKey, redis.Z{
			Score:  float64(result.FinishedAt.UnixMilli()),
			Member: result.TicketID,
		})
		p.ZRemRangeByRank(ctx, recentKey, 0, -recentSize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache result for %s: %w", result.TicketID, err)
	}
	return nil
}

// Get returns the latest result for ticketID.
func (c *Cache) Get(ctx context.Context, ticketID string) (*types.Result, error) {
	raw, err := c.rdb.Get(ctx, resultKey(ticketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read result for %s: %w", ticketID, err)
	}

	var result types.Result
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result for %s: %w", ticketID, err)
	}
	return &result, nil
}

// Recent returns up to limit ticket ids, most recently finished first. Ids
// whose result has expired are skipped.
func (c *Cache) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > recentSize {
		limit = recentSize
	}
	ids, err := c.rdb.ZRevRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultKey(id)
	}
	present, err := c.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check recent results: %w", err)
	}
	if int(present) == len(ids) {
		return ids, nil
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := c.rdb.Exists(ctx, resultKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check result for %s: %w", id, err)
		}
		if n > 0 {
			live = append(live, id)
		}
	}
	return live, nil
}
