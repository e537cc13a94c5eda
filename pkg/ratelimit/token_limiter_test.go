package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLimiter_DisabledNeverBlocks(t *testing.T) {
	limiter := NewTokenLimiter(0)
	require.NoError(t, limiter.Wait(context.Background(), 1_000_000))
}

func TestTokenLimiter_WithinBudget(t *testing.T) {
	limiter := NewTokenLimiter(1000)
	require.NoError(t, limiter.Wait(context.Background(), 400))
	require.NoError(t, limiter.Wait(context.Background(), 400))
	assert.Equal(t, 200, limiter.GetRemaining())
}

func TestTokenLimiter_OversizedRequestOnEmptyWindow(t *testing.T) {
	limiter := NewTokenLimiter(100)
	// A request larger than the whole budget must not block forever.
	require.NoError(t, limiter.Wait(context.Background(), 500))
	assert.Equal(t, 0, limiter.GetRemaining())
}

func TestTokenLimiter_ExhaustedBudgetHonorsContext(t *testing.T) {
	limiter := NewTokenLimiter(100)
	require.NoError(t, limiter.Wait(context.Background(), 100))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx, 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
