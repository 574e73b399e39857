package imap

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Tokens refill continuously at rate per
// second up to burst; Acquire blocks until enough tokens are available.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Acquire takes n tokens, sleeping for the refill when the bucket is short.
func (r *RateLimiter) Acquire(ctx context.Context, n int) error {
	need := float64(n)
	if need > r.burst {
		need = r.burst
	}

	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= need {
			r.tokens -= need
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((need - r.tokens) / r.rate * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now
	r.tokens += elapsed * r.rate
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}
