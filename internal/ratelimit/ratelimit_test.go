package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiter_Wait(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first wait is immediate")

	start = time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	r.Reset()
	start = time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestSimpleRateLimiter_Cancel(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestAdaptiveRateLimiter(t *testing.T) {
	a := NewAdaptiveRateLimiter(2*time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	min, max := a.Delays()
	assert.Equal(t, 3*time.Second, min)
	assert.Equal(t, 3*time.Second, max)

	for i := 0; i < 6*10; i++ {
		a.RecordSuccess()
	}
	min, _ = a.Delays()
	assert.Equal(t, 2*time.Second, min, "successes never relax below the configured floor")
}
