package ratelimit

import (
	"context"
	"testing"
	"time"

	"clawqa/internal/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(store Store, requests int, window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(store, config.RateLimitConfig{Requests: requests, Window: window})
	l.now = c.now
	return l, c
}

func TestLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(NewMemoryStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		c.advance(10 * time.Second)
	}

	// oldest hit was 30s ago, it leaves the window in 30s
	allowed, retryAfter, err := l.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 30, retryAfter)

	c.advance(500 * time.Millisecond)
	_, retryAfter, _ = l.Allow(ctx, "key")
	assert.Equal(t, 30, retryAfter, "rounded up to whole seconds")

	c.advance(29*time.Second + 500*time.Millisecond)
	allowed, _, err = l.Allow(ctx, "key")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_DeniedHitsAreNotCounted(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(NewMemoryStore(), 1, time.Minute)

	allowed, _, _ := l.Allow(ctx, "key")
	require.True(t, allowed)
	for i := 0; i < 5; i++ {
		allowed, _, _ = l.Allow(ctx, "key")
		assert.False(t, allowed)
	}

	c.advance(time.Minute)
	allowed, _, _ = l.Allow(ctx, "key")
	assert.True(t, allowed)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(NewMemoryStore(), 1, time.Minute)

	a, _, _ := l.Allow(ctx, "a")
	b, _, _ := l.Allow(ctx, "b")
	again, _, _ := l.Allow(ctx, "a")

	assert.True(t, a)
	assert.True(t, b)
	assert.False(t, again)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	_, _, _ = s.Hit(ctx, "old", now.Add(-2*time.Minute), 10, time.Minute)
	_, _, _ = s.Hit(ctx, "fresh", now, 10, time.Minute)
	require.Equal(t, 2, s.keys())

	assert.Equal(t, 1, s.Sweep(now))
	assert.Equal(t, 1, s.keys())
}

func TestMemoryStore_RunStopsWithContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- s.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
