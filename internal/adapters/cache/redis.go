package cache

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultKeyPrefix = "fairway:reviews:"
)

// RedisReviewCache stores review snapshots as JSON strings with a TTL.
type RedisReviewCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

var _ ReviewCache = (*RedisReviewCache)(nil)

// NewRedisReviewCache connects to addr and verifies the connection.
func NewRedisReviewCache(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisReviewCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisReviewCacheWithClient(client, opts...), nil
}

// NewRedisReviewCacheWithClient wraps an existing client.
func NewRedisReviewCacheWithClient(client *redis.Client, opts ...Option) *RedisReviewCache {
	c := &RedisReviewCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
		logger: logger.Get().Named("review_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisReviewCache) key(itemID string) string {
	return c.prefix + itemID
}

// Get implements ReviewCache. Entries that fail to decode count as misses.
func (c *RedisReviewCache) Get(ctx context.Context, itemIDs []string) (map[string][]model.ResolvedReview, []string, error) {
	hits := make(map[string][]model.ResolvedReview, len(itemIDs))
	if len(itemIDs) == 0 {
		return hits, nil, nil
	}

	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = c.key(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.RecordCacheError("get")
		return nil, nil, fmt.Errorf("mget reviews: %w", err)
	}

	var misses []string
	for i, id := range itemIDs {
		s, ok := vals[i].(string)
		if !ok {
			misses = append(misses, id)
			continue
		}
		var reviews []model.ResolvedReview
		if err := json.Unmarshal([]byte(s), &reviews); err != nil {
			c.logger.Warn(ctx, "dropping undecodable cache entry", logger.String("item_id", id), logger.Error(err))
			metrics.RecordCacheError("decode")
			misses = append(misses, id)
			continue
		}
		if reviews == nil {
			reviews = []model.ResolvedReview{}
		}
		hits[id] = reviews
	}

	metrics.RecordCacheHits(len(hits))
	metrics.RecordCacheMisses(len(misses))
	return hits, misses, nil
}

// Set implements ReviewCache.
func (c *RedisReviewCache) Set(ctx context.Context, entries map[string][]model.ResolvedReview) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, reviews := range entries {
		if reviews == nil {
			reviews = []model.ResolvedReview{}
		}
		data, err := json.Marshal(reviews)
		if err != nil {
			return fmt.Errorf("encode reviews of %q: %w", id, err)
		}
		pipe.Set(ctx, c.key(id), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("set")
		return fmt.Errorf("cache reviews: %w", err)
	}
	return nil
}

// Invalidate implements ReviewCache.
func (c *RedisReviewCache) Invalidate(ctx context.Context, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordCacheError("invalidate")
		return fmt.Errorf("invalidate reviews: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *RedisReviewCache) Close() error {
	return c.client.Close()
}
