package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/internal/ratelimit/store"
)

func newMemoryLimiter(t *testing.T, cfg Config) Limiter {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	l, err := New(cfg, st)
	require.NoError(t, err)
	return l
}

func TestAttemptLimiterExactBudget(t *testing.T) {
	t.Parallel()

	l := newMemoryLimiter(t, Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      time.Minute,
		MaxAttempts: 3,
	})
	ctx := context.Background()

	// Exactly max attempts admit, the next is rejected.
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"), "attempt %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	// Other keys are unaffected.
	assert.True(t, l.Allow(ctx, "10.0.0.2"))
}

func TestAttemptLimiterClearResets(t *testing.T) {
	t.Parallel()

	l := newMemoryLimiter(t, Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      time.Minute,
		MaxAttempts: 2,
	})
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	l.Clear(ctx, "10.0.0.1")

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
}

func TestAttemptLimiterWindowElapses(t *testing.T) {
	t.Parallel()

	l := newMemoryLimiter(t, Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      50 * time.Millisecond,
		MaxAttempts: 1,
	})
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, l.Allow(ctx, "10.0.0.1"), "counter resets once the window has elapsed")
}

func TestFixedDelayLimiter(t *testing.T) {
	t.Parallel()

	l := newMemoryLimiter(t, Config{
		Name:   "check",
		Policy: PolicyFixedDelay,
		Delay:  50 * time.Millisecond,
	})
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"), "second attempt inside the delay is rejected")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
}

func TestFixedDelayRejectionRestartsDelay(t *testing.T) {
	t.Parallel()

	l := newMemoryLimiter(t, Config{
		Name:   "check",
		Policy: PolicyFixedDelay,
		Delay:  80 * time.Millisecond,
	})
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))

	// A rejected attempt still counts as the last attempt.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, l.Allow(ctx, "10.0.0.1"),
		"hammering keeps the delay running")
}

func TestDisabledConfigsAdmitEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	l := newMemoryLimiter(t, Config{Name: "off", Policy: PolicyFixedDelay})
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"))
	}

	l = newMemoryLimiter(t, Config{Name: "off", Policy: PolicyAttemptCounted, Window: time.Minute})
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"))
	}
}

func TestNewUnknownPolicy(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	_, err := New(Config{Name: "x", Policy: Policy("bogus")}, st)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestAttemptLimiterRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient(client, "test:")
	t.Cleanup(func() { _ = st.Close() })

	l, err := New(Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      time.Minute,
		MaxAttempts: 2,
	}, st)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	l.Clear(ctx, "10.0.0.1")
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
}

func TestLimiterFailsClosedOnStoreError(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient(client, "test:")

	l, err := New(Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      time.Minute,
		MaxAttempts: 5,
	}, st)
	require.NoError(t, err)

	mr.Close()

	assert.False(t, l.Allow(context.Background(), "10.0.0.1"),
		"store failure must deny, not admit")
}

func TestAttemptLimiterTTLCoversWindow(t *testing.T) {
	t.Parallel()

	lim := newMemoryLimiter(t, Config{
		Name:        "login",
		Policy:      PolicyAttemptCounted,
		Window:      5 * time.Minute,
		MaxAttempts: 3,
		TTL:         time.Second,
	})

	al, ok := lim.(*AttemptLimiter)
	require.True(t, ok)
	assert.GreaterOrEqual(t, al.ttl, al.window,
		"an entry evicted mid-window would reset the attempt count early")
}
