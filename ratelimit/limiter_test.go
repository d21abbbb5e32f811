package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/ratelimit"
)

// drain counts how many back-to-back sends a fresh bucket admits.
func drain(l *ratelimit.Limiter, name string, perSecond float64) int {
	n := 0
	for range 100 {
		if l.Allow(name, perSecond) {
			n++
		}
	}
	return n
}

func TestBurstFollowsRate(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
	}{
		{"half per second", 0.5, 1},
		{"tenth per second", 0.1, 1},
		{"one per second", 1, 1},
		{"fractional above one", 2.5, 3},
		{"whole rate", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.burst, drain(ratelimit.New(), "sink", tc.perSecond))
		})
	}
}

func TestNonPositiveRateIsUnlimited(t *testing.T) {
	l := ratelimit.New()
	for _, perSecond := range []float64{0, -1} {
		assert.Equal(t, 100, drain(l, "file", perSecond))
		require.NoError(t, l.Wait(context.Background(), "file", perSecond))
	}
}

func TestFractionalRateWaitsForWholeToken(t *testing.T) {
	l := ratelimit.New()
	require.True(t, l.Allow("mongo", 0.5))
	assert.False(t, l.Allow("mongo", 0.5))

	// The next token is two seconds away.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "mongo", 0.5))
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	l := ratelimit.New()
	require.Equal(t, 4, drain(l, "redis", 4))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "redis", 4))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestBucketsAreIndependent(t *testing.T) {
	l := ratelimit.New()
	require.True(t, l.Allow("slack", 1))
	assert.False(t, l.Allow("slack", 1))
	assert.True(t, l.Allow("nats", 1))
}

func TestRaisingRateTakesEffect(t *testing.T) {
	l := ratelimit.New()
	require.True(t, l.Allow("postgres", 1))
	require.False(t, l.Allow("postgres", 1))

	l.Allow("postgres", 50)
	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow("postgres", 50))
}

func TestResetRefillsBucket(t *testing.T) {
	l := ratelimit.New()
	require.True(t, l.Allow("s3", 1))
	require.False(t, l.Allow("s3", 1))

	l.Reset("s3")
	assert.True(t, l.Allow("s3", 1))
}

func TestConcurrentAllowNeverExceedsBurst(t *testing.T) {
	l := ratelimit.New()
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("splunk", 100) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// A few tokens can refill while the goroutines start.
	assert.LessOrEqual(t, allowed.Load(), int32(110))
	assert.GreaterOrEqual(t, allowed.Load(), int32(100))
}
