package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window counter shared by every instance of the
// service, so limits hold across Lambda invocations.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisRateLimiter allows limit requests per window per key
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit:",
	}
}

func (l *RedisRateLimiter) key(key string) string {
	bucket := time.Now().UnixNano() / int64(l.window)
	return fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)
}

// Allow increments the counter for the current window
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= l.limit, nil
}

// Reset clears the counter of the current window
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}
