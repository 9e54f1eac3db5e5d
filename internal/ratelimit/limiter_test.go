package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInterval_SpacesRequests(t *testing.T) {
	limiter := NewInterval("test", 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, limiter.Wait(ctx))
	}
	// First request passes immediately, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, "test", limiter.Name())
	assert.Equal(t, 50*time.Millisecond, limiter.Interval())
}

func TestNewInterval_ZeroDisablesLimiting(t *testing.T) {
	limiter := NewInterval("unlimited", 0)

	for range 100 {
		assert.True(t, limiter.Allow())
	}
}

func TestWait_CancelledContext(t *testing.T) {
	limiter := NewInterval("slow", time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow")
}

func TestNew_RequestsPerSecond(t *testing.T) {
	limiter := New("OpenLibrary", 2)

	assert.Equal(t, 500*time.Millisecond, limiter.Interval())
	assert.True(t, limiter.Allow())
}
