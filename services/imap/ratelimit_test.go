package imap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstDoesNotBlock(t *testing.T) {
	limiter := NewRateLimiter(1, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Acquire(context.Background(), 1))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_BlocksWhenExhausted(t *testing.T) {
	limiter := NewRateLimiter(10, 1)

	require.NoError(t, limiter.Acquire(context.Background(), 1))

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background(), 1))
	// One token at 10/s refills in ~100ms.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)
	require.NoError(t, limiter.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_RequestCappedAtBurst(t *testing.T) {
	limiter := NewRateLimiter(100, 2)

	// Asking for more than burst must not deadlock.
	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(context.Background(), 10)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire beyond burst deadlocked")
	}
}
