// Package ratelimit implements the per-identity token bucket limiter from
// spec.md §4.9, generalized from the teacher's per-user-only
// httpapi.RateLimiter to key by tenant-or-client-address.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config mirrors the environment-driven RATE_LIMIT_REQUESTS /
// RATE_LIMIT_PERIOD settings.
type Config struct {
	MaxRequests int
	Window      time.Duration
	Burst       int
}

// Bucket is the narrow interface both the in-memory and Redis-backed
// limiters satisfy, so callers don't care which backend is wired.
type Bucket interface {
	// Allow reports whether a request identified by key may proceed, along
	// with the remaining tokens, the time the next token is available, and
	// the time the bucket is back to full capacity.
	Allow(key string) (allowed bool, remaining int, nextToken, fullReset time.Time)
}

// tokenBucket is one identity's bucket state.
type tokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64) *tokenBucket {
	return &tokenBucket{tokens: float64(capacity), capacity: float64(capacity), refillRate: refillRate, lastRefill: time.Now()}
}

func (tb *tokenBucket) allow() (bool, int, time.Time, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	tokensNeeded := tb.capacity - tb.tokens
	fullReset := now.Add(time.Duration(tokensNeeded/tb.refillRate) * time.Second)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), now, fullReset
	}

	secondsUntilNext := (1.0 - tb.tokens) / tb.refillRate
	return false, 0, now.Add(time.Duration(secondsUntilNext) * time.Second), fullReset
}

// InMemoryLimiter is the single-process default: one goroutine-safe map of
// per-key token buckets, with a background sweep evicting idle entries.
type InMemoryLimiter struct {
	buckets map[string]*tokenBucket
	cfg     Config
	mu      sync.RWMutex
}

func NewInMemory(cfg Config) *InMemoryLimiter {
	rl := &InMemoryLimiter{buckets: make(map[string]*tokenBucket), cfg: cfg}
	go rl.cleanupLoop()
	return rl
}

func (rl *InMemoryLimiter) getBucket(key string) *tokenBucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		return b
	}
	refillRate := float64(rl.cfg.MaxRequests) / rl.cfg.Window.Seconds()
	b = newTokenBucket(rl.cfg.Burst, refillRate)
	rl.buckets[key] = b
	return b
}

func (rl *InMemoryLimiter) Allow(key string) (bool, int, time.Time, time.Time) {
	return rl.getBucket(key).allow()
}

func (rl *InMemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, b := range rl.buckets {
			b.mu.Lock()
			if time.Since(b.lastRefill) > time.Hour {
				delete(rl.buckets, key)
			}
			b.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// IdentityKeyFunc extracts the identity key for a request: "user:<tenant>"
// when a tenant has already been resolved earlier in the pipeline,
// otherwise the client network address.
type IdentityKeyFunc func(r *http.Request) string

// Middleware enforces the configured limiter, exempting none of its own
// accord — callers exclude the healthcheck route by not mounting this
// middleware on it, per spec.md §4.9.
func Middleware(limiter Bucket, cfg Config, keyFn IdentityKeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed, remaining, nextToken, fullReset := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullReset.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(nextToken).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
