package ratelimit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naggery/naggery/internal/secerr"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
	}
}

func TestFixedWindowAllowsUpToMax(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Now()}
			l := New(store, WithClock(clock.Now))
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				res, err := l.CheckAndIncrement(ctx, "login", "1.2.3.4", 15*time.Minute, 5)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "attempt %d", i)
				assert.Equal(t, 5-i, res.Remaining)
			}
			res, err := l.CheckAndIncrement(ctx, "login", "1.2.3.4", 15*time.Minute, 5)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			assert.WithinDuration(t, clock.Now().Add(15*time.Minute), res.ResetTime, time.Second)

			other, err := l.CheckAndIncrement(ctx, "login", "5.6.7.8", 15*time.Minute, 5)
			require.NoError(t, err)
			assert.True(t, other.Allowed)
		})
	}
}

func TestWindowRestartsAfterReset(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Now()}
			l := New(store, WithClock(clock.Now))
			ctx := context.Background()

			for i := 0; i < 4; i++ {
				_, err := l.CheckAndIncrement(ctx, "verification", "u1", 5*time.Minute, 3)
				require.NoError(t, err)
			}
			clock.Advance(5*time.Minute + time.Second)

			res, err := l.CheckAndIncrement(ctx, "verification", "u1", 5*time.Minute, 3)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 2, res.Remaining)
		})
	}
}

func TestConcurrentIncrementsNeverOverAdmit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l := New(store)
			ctx := context.Background()

			var allowed int32
			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := l.CheckAndIncrement(ctx, "sms", "+15550001111", time.Hour, 3)
					if err == nil && res.Allowed {
						atomic.AddInt32(&allowed, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(3), allowed)
		})
	}
}

func TestAllowReturnsRateLimitError(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var denied int
	l := New(NewMemoryStore(), WithClock(clock.Now), WithObserver(func(_ string, ok bool) {
		if !ok {
			denied++
		}
	}))
	p := l.Policies().TwoFactor
	ctx := context.Background()

	for i := 0; i < p.Max; i++ {
		_, err := l.Allow(ctx, p, "user-1")
		require.NoError(t, err)
	}
	clock.Advance(time.Minute)
	_, err := l.Allow(ctx, p, "user-1")
	require.ErrorIs(t, err, secerr.ErrRateLimited)

	var rl *secerr.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 9*time.Minute, rl.RetryAfter)
	assert.Equal(t, 1, denied)
}

func TestResetClearsCounter(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l := New(store)
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				_, _ = l.CheckAndIncrement(ctx, "sms", "p", time.Hour, 1)
			}
			require.NoError(t, l.Reset(ctx, "sms", "p"))
			res, err := l.CheckAndIncrement(ctx, "sms", "p", time.Hour, 1)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestInvalidBudget(t *testing.T) {
	l := New(NewMemoryStore())
	_, err := l.CheckAndIncrement(context.Background(), "x", "y", 0, 1)
	assert.Error(t, err)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, Policy{Action: "login", Window: 15 * time.Minute, Max: 5}, p.Login)
	assert.Equal(t, Policy{Action: "verification", Window: 5 * time.Minute, Max: 3}, p.Verification)
	assert.Equal(t, Policy{Action: "2fa", Window: 10 * time.Minute, Max: 5}, p.TwoFactor)
	assert.Equal(t, Policy{Action: "sms", Window: time.Hour, Max: 3}, p.SMS)
}

func TestLoadPolicyFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("login:\n  window: 30m\nsms:\n  max: 10\n"), 0o600))

	p, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, p.Login.Window)
	assert.Equal(t, 5, p.Login.Max)
	assert.Equal(t, "login", p.Login.Action)
	assert.Equal(t, 10, p.SMS.Max)
	assert.Equal(t, time.Hour, p.SMS.Window)
	assert.Equal(t, DefaultPolicies().TwoFactor, p.TwoFactor)
}

func TestMemoryStorePrunesExpired(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	ctx := context.Background()
	_, _, _ = s.Increment(ctx, "old", time.Second, now)
	later := now.Add(time.Minute)
	for i := 0; i < pruneEvery; i++ {
		_, _, _ = s.Increment(ctx, "live", time.Hour, later)
	}
	assert.Equal(t, 1, s.Len())
}
