package crossref

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurstUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	slept := 0
	limiter.sleep = func(time.Duration) { slept++ }

	limiter.Wait()
	limiter.Wait()
	limiter.Wait()

	assert.Zero(t, slept, "requests within the limit must not block")
	assert.Len(t, limiter.requests, 3)
}

func TestRateLimiterClampsNonPositiveLimit(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute)
	limiter.sleep = func(time.Duration) { t.Fatal("must not sleep") }

	// A zero limit would leave the window permanently full; it is treated
	// as one request per window instead.
	limiter.Wait()

	assert.Equal(t, 1, limiter.maxRequests)
	assert.Len(t, limiter.requests, 1)
}

func TestRateLimiterBlocksWhenWindowIsFull(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	var waited time.Duration
	limiter.sleep = func(d time.Duration) {
		waited = d
		// Simulate the oldest slot falling out of the window.
		limiter.mu.Lock()
		limiter.requests[0] = time.Now().Add(-2 * time.Minute)
		limiter.mu.Unlock()
	}

	limiter.Wait()
	limiter.Wait()
	limiter.Wait()

	assert.Greater(t, waited, time.Duration(0))
	assert.Len(t, limiter.requests, 2)
}

func TestRateLimiterPrunesExpiredTimestamps(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	old := time.Now().Add(-2 * time.Minute)
	limiter.requests = []time.Time{old, old}

	// Both slots are stale, so the next request passes without sleeping.
	limiter.sleep = func(time.Duration) { t.Fatal("must not sleep") }
	limiter.Wait()

	assert.Len(t, limiter.requests, 1)
}

func TestRateLimiterConcurrentUse(t *testing.T) {
	limiter := NewRateLimiter(100, time.Minute)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			limiter.Wait()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}
	assert.Len(t, limiter.requests, 50)
}
