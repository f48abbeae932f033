package server

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// rateLimiter hands out request tokens per client from a token bucket,
// so short bursts pass while sustained load is held to the configured
// rate.
type rateLimiter struct {
	mu      sync.Mutex
	rate    float64 // tokens added per second
	burst   float64 // bucket capacity
	clients map[string]*bucket

	now func() time.Time // swapped in tests
}

// bucket tracks the remaining tokens for one client.
type bucket struct {
	tokens float64
	last   time.Time
}

// defaultBurst sizes the bucket for a given refill rate. A second's
// worth of requests may arrive at once, and slow limits still admit at
// least two back-to-back requests.
func defaultBurst(rate float64) int {
	burst := int(math.Ceil(rate))
	if burst < 2 {
		burst = 2
	}
	return burst
}

// newRateLimiter creates a limiter refilling rate tokens per second per
// client, holding at most burst tokens.
func newRateLimiter(rate float64, burst int) *rateLimiter {
	return &rateLimiter{
		rate:    rate,
		burst:   float64(burst),
		clients: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from the client's bucket. It returns a
// *RateLimitError when the bucket is empty.
func (rl *rateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[clientID]
	if !ok {
		b = &bucket{tokens: rl.burst, last: now}
		rl.clients[clientID] = b
	}

	// Refill for the elapsed time, capped at the bucket size.
	b.tokens += now.Sub(b.last).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.last = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
		return &RateLimitError{
			Limit:      rl.rate,
			RetryAfter: wait,
		}
	}

	b.tokens--
	return nil
}

// RateLimitError reports a request rejected by the token bucket.
type RateLimitError struct {
	Limit      float64       // allowed requests per second
	RetryAfter time.Duration // how long until a token is available
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %g req/s, retry after: %v)",
		e.Limit, e.RetryAfter.Round(time.Millisecond))
}
