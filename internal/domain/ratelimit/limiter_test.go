package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, cfg BucketConfig) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Options{Now: clock.Now})
	require.NoError(t, l.Register("board", cfg))
	return l, clock
}

func TestBucketConfigValidate(t *testing.T) {
	assert.NoError(t, BucketConfig{Capacity: 1, RefillPerSecond: 0.01}.Validate())
	assert.ErrorIs(t, BucketConfig{Capacity: 0, RefillPerSecond: 1}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, BucketConfig{Capacity: 1, RefillPerSecond: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, BucketConfig{Capacity: 1, RefillPerSecond: -2}.Validate(), ErrInvalidConfig)
}

func TestTryAcquire(t *testing.T) {
	t.Run("starts full and drains to zero", func(t *testing.T) {
		l, _ := newTestLimiter(t, BucketConfig{Capacity: 3, RefillPerSecond: 1})

		assert.True(t, l.TryAcquire("board"))
		assert.True(t, l.TryAcquire("board"))
		assert.True(t, l.TryAcquire("board"))
		assert.False(t, l.TryAcquire("board"))

		snap, ok := l.Snapshot("board")
		require.True(t, ok)
		assert.GreaterOrEqual(t, snap.Tokens, 0.0)
		assert.Less(t, snap.Tokens, 1.0)
	})

	t.Run("refills fractionally over time", func(t *testing.T) {
		l, clock := newTestLimiter(t, BucketConfig{Capacity: 2, RefillPerSecond: 1})
		require.True(t, l.TryAcquire("board"))
		require.True(t, l.TryAcquire("board"))

		clock.Advance(500 * time.Millisecond)
		assert.False(t, l.TryAcquire("board"))

		snap, _ := l.Snapshot("board")
		assert.InDelta(t, 0.5, snap.Tokens, 1e-9)

		clock.Advance(500 * time.Millisecond)
		assert.True(t, l.TryAcquire("board"))
	})

	t.Run("never exceeds capacity after long idle", func(t *testing.T) {
		l, clock := newTestLimiter(t, BucketConfig{Capacity: 2, RefillPerSecond: 10})
		clock.Advance(24 * time.Hour)

		snap, _ := l.Snapshot("board")
		assert.InDelta(t, 2.0, snap.Tokens, 1e-9)
	})

	t.Run("unknown source is refused", func(t *testing.T) {
		l, _ := newTestLimiter(t, BucketConfig{Capacity: 1, RefillPerSecond: 1})
		assert.False(t, l.TryAcquire("missing"))
	})
}

func TestRollingHourNeverExceedsCapacityPlusRefill(t *testing.T) {
	// 0.0001 tokens/s refills 0.36 tokens per hour, so an hour admits at most capacity acquisitions.
	l, clock := newTestLimiter(t, BucketConfig{Capacity: 5, RefillPerSecond: 0.0001})

	var granted []time.Time
	for range 2000 {
		if l.TryAcquire("board") {
			granted = append(granted, clock.Now())
		}
		clock.Advance(1800 * time.Millisecond)
	}

	for i := range granted {
		windowEnd := granted[i].Add(time.Hour)
		count := 0
		for _, g := range granted[i:] {
			if g.Before(windowEnd) {
				count++
			}
		}
		assert.LessOrEqual(t, count, 5, "window starting at %s", granted[i])
	}
}

func TestSourcesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, BucketConfig{Capacity: 1, RefillPerSecond: 0.001})
	require.NoError(t, l.Register("other", BucketConfig{Capacity: 1, RefillPerSecond: 0.001}))

	assert.True(t, l.TryAcquire("board"))
	assert.False(t, l.TryAcquire("board"))
	assert.True(t, l.TryAcquire("other"))
	assert.ElementsMatch(t, []string{"board", "other"}, l.Sources())
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(t, BucketConfig{Capacity: 2, RefillPerSecond: 0.001})
	require.True(t, l.TryAcquire("board"))
	require.True(t, l.TryAcquire("board"))
	require.False(t, l.TryAcquire("board"))

	require.NoError(t, l.Reset("board"))

	snap, _ := l.Snapshot("board")
	assert.InDelta(t, 2.0, snap.Tokens, 1e-9)
	assert.True(t, l.TryAcquire("board"))

	assert.ErrorIs(t, l.Reset("missing"), ErrUnknownSource)
}

func TestWaitAndAcquire(t *testing.T) {
	t.Run("returns immediately when a token is available", func(t *testing.T) {
		l, clock := newTestLimiter(t, BucketConfig{Capacity: 1, RefillPerSecond: 1})
		at, err := l.WaitAndAcquire(context.Background(), "board")
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), at)
	})

	t.Run("blocks until the next token", func(t *testing.T) {
		l := New(Options{})
		require.NoError(t, l.Register("board", BucketConfig{Capacity: 1, RefillPerSecond: 20}))
		require.True(t, l.TryAcquire("board"))

		start := time.Now()
		_, err := l.WaitAndAcquire(context.Background(), "board")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("observes cancellation", func(t *testing.T) {
		l := New(Options{})
		require.NoError(t, l.Register("board", BucketConfig{Capacity: 1, RefillPerSecond: 0.001}))
		require.True(t, l.TryAcquire("board"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := l.WaitAndAcquire(ctx, "board")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unknown source", func(t *testing.T) {
		l := New(Options{})
		_, err := l.WaitAndAcquire(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrUnknownSource)
	})

	t.Run("concurrent waiters never overdraw", func(t *testing.T) {
		l := New(Options{})
		require.NoError(t, l.Register("board", BucketConfig{Capacity: 2, RefillPerSecond: 50}))

		var acquired atomic.Int32
		var wg sync.WaitGroup
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.WaitAndAcquire(context.Background(), "board"); err == nil {
					acquired.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(6), acquired.Load())

		snap, _ := l.Snapshot("board")
		assert.GreaterOrEqual(t, snap.Tokens, 0.0)
	})
}
