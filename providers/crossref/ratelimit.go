package crossref

import (
	"sync"
	"time"
)

// RateLimiter caps outbound requests to a maximum count per rolling time
// window. Wait blocks the caller until a slot is free; the timestamp list is
// guarded by a mutex so concurrent fetches can share one limiter.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    []time.Time

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewRateLimiter creates a limiter allowing maxRequests per window. A
// non-positive limit is clamped to one request per window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		sleep:       time.Sleep,
	}
}

// Wait blocks until a request slot is available, then records the request.
// Callers contending for the same slot re-check after waking, so at most one
// of them proceeds per freed slot.
func (r *RateLimiter) Wait() {
	for {
		r.mu.Lock()
		now := time.Now()
		r.prune(now)
		if len(r.requests) < r.maxRequests {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return
		}
		wait := r.requests[0].Add(r.window).Sub(now)
		r.mu.Unlock()

		if wait > 0 {
			r.sleep(wait)
		}
	}
}

// prune drops timestamps that have fallen out of the rolling window.
// Callers must hold the mutex.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.requests[:0]
	for _, t := range r.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.requests = kept
}
