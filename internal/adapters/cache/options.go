package cache

import "time"

// Option applies a configuration option to the RedisReviewCache.
type Option func(*RedisReviewCache)

// WithTTL sets how long a snapshot stays cached.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisReviewCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(c *RedisReviewCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}
