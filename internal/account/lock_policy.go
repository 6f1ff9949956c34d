// Package account stores users and applies the failed-login lockout policy.
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/naggery/naggery/internal/secerr"
)

const (
	DefaultLockThreshold = 5
	DefaultLockDuration  = 15 * time.Minute
)

// LockPolicy counts failed logins and locks accounts temporarily.
type LockPolicy struct {
	repo      Repository
	threshold int
	duration  time.Duration
	now       func() time.Time
}

// NewLockPolicy builds a policy with the default threshold and duration.
func NewLockPolicy(repo Repository, now func() time.Time) *LockPolicy {
	if now == nil {
		now = time.Now
	}
	return &LockPolicy{repo: repo, threshold: DefaultLockThreshold, duration: DefaultLockDuration, now: now}
}

// RecordFailedLogin adds one failure and returns the updated user. Reaching
// the threshold sets LockedUntil to now plus the lock duration.
func (p *LockPolicy) RecordFailedLogin(ctx context.Context, user User) (User, error) {
	updated, err := p.repo.RecordFailedLogin(ctx, user.ID, p.threshold, p.now().Add(p.duration))
	if err != nil {
		return user, fmt.Errorf("record failed login: %w", err)
	}
	return updated, nil
}

// RecordSuccessfulLogin clears the failure counter and any lock.
func (p *LockPolicy) RecordSuccessfulLogin(ctx context.Context, user User) (User, error) {
	if err := p.repo.ResetLoginAttempts(ctx, user.ID); err != nil {
		return user, fmt.Errorf("reset login attempts: %w", err)
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	return user, nil
}

// IsLocked reports whether a lock is set and still in the future.
func (p *LockPolicy) IsLocked(user User) bool {
	return user.LockedUntil != nil && user.LockedUntil.After(p.now())
}

// CheckLocked returns a *secerr.LockedError while the user is locked.
func (p *LockPolicy) CheckLocked(user User) error {
	if now := p.now(); user.LockedUntil != nil && user.LockedUntil.After(now) {
		return &secerr.LockedError{Until: *user.LockedUntil, At: now}
	}
	return nil
}
