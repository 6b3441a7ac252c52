package ghsearch

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// SearchRateLimit is the authenticated search rate limit (30/minute).
	SearchRateLimit = 30

	// ProactiveRate is the proactive throttle rate (~0.45 req/sec = 27/min).
	ProactiveRate = 0.45

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter implements dual-strategy rate limiting for the search endpoint:
// a token bucket throttles proactively, and reset-time tracking from response
// headers blocks reactively once the quota is gone.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int       // From API header
	resetTime time.Time // From API header
	bucket    *rate.Limiter
}

// NewRateLimiter creates a rate limiter tuned for the search endpoint budget.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithRate(rate.Limit(ProactiveRate))
}

// NewRateLimiterWithRate creates a rate limiter with a custom proactive rate.
func NewRateLimiterWithRate(r rate.Limit) *RateLimiter {
	return &RateLimiter{
		remaining: SearchRateLimit, // Assume full quota initially
		bucket:    rate.NewLimiter(r, 1),
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	// 1. Token bucket (proactive throttling)
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	// 2. API quota (reactive)
	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining == 0 && time.Now().Before(resetTime) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(resetTime)):
		}
	}

	return nil
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}

	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// Remaining returns the current remaining requests.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// ResetTime returns the rate limit reset time.
func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}
