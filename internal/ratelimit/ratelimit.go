// Package ratelimit implements fixed-window throttling keyed by action and
// identifier. Counters live in a Store that must increment atomically.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/naggery/naggery/internal/secerr"
)

// Result reports the outcome of a single counted attempt.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// RetryAfter is the time left in the current window.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Store holds window counters.
type Store interface {
	// Increment adds one to key and returns the new count and window end. When
	// now is past the stored window end the counter restarts at 1 with a
	// window ending at now+window.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// Limiter counts attempts against policies.
type Limiter struct {
	store    Store
	policies Policies
	now      func() time.Time
	observer func(action string, allowed bool)
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithPolicies replaces the built-in policy table.
func WithPolicies(p Policies) Option {
	return func(l *Limiter) { l.policies = p }
}

// WithObserver registers a callback invoked after every decision.
func WithObserver(fn func(action string, allowed bool)) Option {
	return func(l *Limiter) { l.observer = fn }
}

// New builds a Limiter on top of store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, policies: DefaultPolicies(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policies exposes the active policy table.
func (l *Limiter) Policies() Policies {
	return l.policies
}

// CheckAndIncrement counts one attempt for action:identifier and reports
// whether it fits the budget of max per window.
func (l *Limiter) CheckAndIncrement(ctx context.Context, action, identifier string, window time.Duration, max int) (Result, error) {
	if window <= 0 || max <= 0 {
		return Result{}, fmt.Errorf("ratelimit %s: window and max must be positive", action)
	}
	count, reset, err := l.store.Increment(ctx, Key(action, identifier), window, l.now())
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit %s: %w", action, err)
	}
	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: count <= int64(max), Remaining: remaining, ResetTime: reset}
	if l.observer != nil {
		l.observer(action, res.Allowed)
	}
	return res, nil
}

// Allow counts an attempt under p and converts a refusal into a
// *secerr.RateLimitError carrying the wait time.
func (l *Limiter) Allow(ctx context.Context, p Policy, identifier string) (Result, error) {
	res, err := l.CheckAndIncrement(ctx, p.Action, identifier, p.Window, p.Max)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, &secerr.RateLimitError{Action: p.Action, RetryAfter: res.RetryAfter(l.now())}
	}
	return res, nil
}

// Reset clears a counter. Intended for administrative override.
func (l *Limiter) Reset(ctx context.Context, action, identifier string) error {
	if err := l.store.Delete(ctx, Key(action, identifier)); err != nil {
		return fmt.Errorf("ratelimit reset %s: %w", action, err)
	}
	return nil
}

// Key is the storage key of a counter.
func Key(action, identifier string) string {
	return action + ":" + identifier
}
