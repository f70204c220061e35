package fetch

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an explicit, instance-owned rate limiter: capacity tokens
// refill one at a time every refillInterval. It replaces the module-level
// mutable timestamp the original rate gate used, so a test or a
// multi-process deployment can own (and, if needed, persist) its state
// instead of sharing a single global.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	tokens         int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

// NewTokenBucket constructs a bucket starting full.
func NewTokenBucket(capacity int, refillInterval time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:       capacity,
		tokens:         capacity,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
		now:            time.Now,
	}
}

// TryTake attempts to consume one token without blocking. It reports
// whether a token was available.
func (b *TokenBucket) TryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		if b.TryTake() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.refillInterval / 4):
		}
	}
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}
	refills := int(elapsed / b.refillInterval)
	b.tokens += refills
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(refills) * b.refillInterval)
}
