package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurstPerKey(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("api.coingecko.com"))
	assert.True(t, l.Allow("api.coingecko.com"))
	assert.False(t, l.Allow("api.coingecko.com"))
	assert.True(t, l.Allow("other.host"))
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "h"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "h"))
}

func TestNonPositiveRateIsUnlimited(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("h"))
	}
}
