// Package ratelimit implements per-user token bucket rate limiting.
package ratelimit

import (
	"sync"
	"time"

	"github.com/galleylabs/galley/internal/metrics"
)

// Limiter tracks a token bucket per username. A zero rpm disables limiting.
type Limiter struct {
	mu      sync.Mutex
	rpm     int
	buckets map[string]*tokenBucket
	now     func() time.Time
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a limiter allowing rpm requests per minute per user.
func New(rpm int) *Limiter {
	return &Limiter{
		rpm:     rpm,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// Enabled reports whether the limiter enforces a limit.
func (l *Limiter) Enabled() bool {
	return l.rpm > 0
}

// Allow checks if a request from the given user should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(username string) bool {
	if l.rpm == 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[username]
	if !ok {
		bucket = &tokenBucket{
			tokens:     float64(l.rpm),
			maxTokens:  float64(l.rpm),
			refillRate: float64(l.rpm) / 60.0,
			lastRefill: l.now(),
		}
		l.buckets[username] = bucket
	}

	// Refill tokens
	now := l.now()
	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * bucket.refillRate
	if bucket.tokens > bucket.maxTokens {
		bucket.tokens = bucket.maxTokens
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		metrics.RecordRateLimitHit()
		return false
	}

	bucket.tokens--
	return true
}

// RetryAfter returns the number of seconds until the next token is available.
func (l *Limiter) RetryAfter(username string) int {
	if l.rpm == 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[username]
	if !ok {
		return 0
	}

	if bucket.tokens >= 1 {
		return 0
	}

	// Time until next token
	needed := 1.0 - bucket.tokens
	seconds := needed / bucket.refillRate
	return int(seconds) + 1
}

// Cleanup removes buckets for users that haven't been seen recently.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for username, bucket := range l.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(l.buckets, username)
		}
	}
}
