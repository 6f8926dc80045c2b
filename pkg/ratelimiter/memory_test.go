package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter(c)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ep:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "ep:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.InDelta(t, float64(20*time.Second), float64(res.RetryAfter), float64(time.Millisecond))

	// other keys have their own bucket
	res, err = l.Allow(ctx, "ep:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	c.Advance(20 * time.Second)
	res, err = l.Allow(ctx, "ep:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "one token refilled")

	res, err = l.Allow(ctx, "ep:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemoryLimiterDeniedRequestsDoNotConsume(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter(c)

	res, _ := l.Allow(ctx, "k", 1, time.Minute)
	assert.True(t, res.Allowed)
	for i := 0; i < 5; i++ {
		res, _ = l.Allow(ctx, "k", 1, time.Minute)
		assert.False(t, res.Allowed)
	}
	c.Advance(time.Minute)
	res, _ = l.Allow(ctx, "k", 1, time.Minute)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiterInvalidQuota(t *testing.T) {
	l := NewMemoryLimiter(nil)
	_, err := l.Allow(context.Background(), "k", 0, time.Minute)
	assert.Error(t, err)
}
