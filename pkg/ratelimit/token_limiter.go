package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a tokens-per-minute budget. The window resets a full
// minute after the first consumption in that window.
type TokenLimiter struct {
	mu          sync.Mutex
	maxPerMin   int
	used        int
	windowStart time.Time
}

// NewTokenLimiter creates a limiter with the given per-minute budget. A
// non-positive budget disables limiting.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{maxPerMin: maxPerMinute}
}

// Wait blocks until n tokens fit in the current window, then consumes them.
// Requests larger than the whole budget are consumed immediately after an
// empty window rather than blocking forever.
func (t *TokenLimiter) Wait(ctx context.Context, n int) error {
	if t.maxPerMin <= 0 {
		return nil
	}

	for {
		t.mu.Lock()
		now := time.Now()
		if t.windowStart.IsZero() || now.Sub(t.windowStart) >= time.Minute {
			t.windowStart = now
			t.used = 0
		}

		if t.used+n <= t.maxPerMin || t.used == 0 {
			t.used += n
			t.mu.Unlock()
			return nil
		}

		sleep := time.Minute - now.Sub(t.windowStart)
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// GetRemaining reports the unused budget in the current window.
func (t *TokenLimiter) GetRemaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxPerMin <= 0 {
		return 0
	}
	if t.windowStart.IsZero() || time.Since(t.windowStart) >= time.Minute {
		return t.maxPerMin
	}
	remaining := t.maxPerMin - t.used
	if remaining < 0 {
		return 0
	}
	return remaining
}
