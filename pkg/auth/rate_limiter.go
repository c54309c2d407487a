package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether another request for key is allowed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter implements token bucket rate limiting in memory
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	idleAfter  time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter allows maxTokens bursts, refilling one token every refillRate
func NewTokenBucketLimiter(maxTokens int, refillRate time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleAfter:  time.Hour,
		stop:       make(chan struct{}),
	}
	go l.cleanup(5 * time.Minute)
	return l
}

// PerMinute returns a limiter allowing n requests per minute per key
func PerMinute(n int) *TokenBucketLimiter {
	if n <= 0 {
		n = 1
	}
	return NewTokenBucketLimiter(n, time.Minute/time.Duration(n))
}

// Allow consumes a token for key
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
	}

	if refill := int(now.Sub(b.lastRefill) / l.refillRate); refill > 0 {
		b.tokens = min(b.tokens+refill, l.maxTokens)
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * l.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Reset forgets the bucket for key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Stop ends the cleanup goroutine
func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *TokenBucketLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastRefill) > l.idleAfter {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// PrefixedLimiter namespaces keys before delegating
type PrefixedLimiter struct {
	prefix  string
	limiter RateLimiter
}

// NewPrefixedLimiter scopes limiter to keys starting with prefix
func NewPrefixedLimiter(prefix string, limiter RateLimiter) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: prefix, limiter: limiter}
}

func (l *PrefixedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(ctx, l.prefix+":"+key)
}

func (l *PrefixedLimiter) Reset(ctx context.Context, key string) error {
	return l.limiter.Reset(ctx, l.prefix+":"+key)
}
