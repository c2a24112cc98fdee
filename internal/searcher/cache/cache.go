// Package cache stores search responses in Redis keyed by index type, limit
// and normalized query. Concurrent misses for one key compute once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	pkgredis "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Backend = (*pkgredis.Client)(nil)

// Response is the cached unit: the ranked records of one query.
type Response struct {
	Index   string            `json:"index"`
	Query   string            `json:"query"`
	Results []searcher.Result `json:"results"`
}

type QueryCache struct {
	client Backend
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, index, query string, limit int) (*Response, bool) {
	key := buildKey(index, query, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "index", index, "query", query, "key", key)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, index, query string, limit int, resp *Response) {
	key := buildKey(index, query, limit)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes, stores and returns
// it. The boolean reports a cache hit. Errors are not cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	index, query string,
	limit int,
	computeFn func() (*Response, error),
) (*Response, bool, error) {
	if resp, ok := c.Get(ctx, index, query, limit); ok {
		return resp, true, nil
	}
	key := buildKey(index, query, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, index, query, limit, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Response), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func buildKey(index, query string, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", index, normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, index, hash[:16])
}

// normalizeQuery folds case and whitespace. Word order is kept since the
// sentence index is order sensitive.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
