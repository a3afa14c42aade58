package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("user-1") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"))
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	rl.Allow("user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.Error(t, rl.Wait(ctx, "user-1"))
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := NewWithIdleTTL(1, 1, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(50 * time.Second)
	rl.Allow("busy")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, rl.Evict())
	assert.Equal(t, 1, rl.Len())

	// An evicted key starts with a fresh bucket.
	assert.True(t, rl.Allow("idle"))
}
