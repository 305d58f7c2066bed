package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/CVMHW/roger-74-sub004/roger/pipeline/ports"
)

// TokenBucket implements a token bucket cooldown limiter. With capacity 1
// it admits at most one acquisition per refill window, which is how the
// retrieval service rate-limits embedder re-initialization attempts.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket limiter.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// Acquire attempts to acquire a token for the given key.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{tokens: tb.capacity, lastRefill: time.Now()}
		tb.buckets[key] = b
	}

	elapsed := time.Since(b.lastRefill)
	tokensToAdd := int(elapsed / tb.refillRate)
	if tokensToAdd > 0 {
		b.tokens = min(b.tokens+tokensToAdd, tb.capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(tokensToAdd) * tb.refillRate)
	}

	if b.tokens <= 0 {
		return nil, ErrCooldown
	}

	b.tokens--

	release = func() {}
	return release, nil
}

// ErrCooldown is returned while the key is still cooling down.
var ErrCooldown = &CooldownError{Message: "cooldown window active"}

type CooldownError struct {
	Message string
}

func (e *CooldownError) Error() string {
	return e.Message
}

// Ensure TokenBucket implements the CooldownLimiter interface.
var _ ports.CooldownLimiter = (*TokenBucket)(nil)
