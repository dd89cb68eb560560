package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter is the interface for rate limiting.
// It defines a single method, Allow, which returns true if a request is allowed,
// and false otherwise.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}

// Keyed keeps one token bucket per key (for example a user id), created on first use.
// Buckets idle for longer than idleTTL are dropped on the next sweep.
type Keyed struct {
	rate     float64
	capacity int
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastSweep time.Time
}

// NewKeyed creates a per-key limiter.
func NewKeyed(rate float64, capacity int, idleTTL time.Duration) *Keyed {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Keyed{
		rate:     rate,
		capacity: capacity,
		idleTTL:  idleTTL,
		now:      time.Now,
		buckets:  make(map[string]*TokenBucket),
	}
}

// Allow consumes a token from the bucket of key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) >= k.idleTTL {
		for id, b := range k.buckets {
			if now.Sub(b.lastUsed()) >= k.idleTTL {
				delete(k.buckets, id)
			}
		}
		k.lastSweep = now
	}
	b, ok := k.buckets[key]
	if !ok {
		b = newTokenBucketAt(k.rate, k.capacity, k.now)
		k.buckets[key] = b
	}
	k.mu.Unlock()
	return b.Allow()
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
