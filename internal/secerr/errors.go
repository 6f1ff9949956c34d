// Package secerr holds the error kinds shared by the security components.
// Callers match kinds with errors.Is and pull details with errors.As.
package secerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("expired")
	ErrAlreadyVerified    = errors.New("already verified")
	ErrAttemptsExceeded   = errors.New("too many attempts")
	ErrCodeMismatch       = errors.New("code mismatch")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account locked")
	ErrDecryption         = errors.New("decryption failed")
	ErrEncryption         = errors.New("encryption failed")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields map[string]string
}

// Validation builds a ValidationError for a single field.
func Validation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RateLimitError is returned when an action exceeds its window budget.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	secs := int(e.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("too many requests, retry in %d seconds", secs)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// LockedError reports a lockout and when it lifts. At is when the lock was
// observed; a zero At means the wall clock.
type LockedError struct {
	Until time.Time
	At    time.Time
}

// Remaining returns how long the lock still holds relative to now.
func (e *LockedError) Remaining(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (e *LockedError) Error() string {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	mins := int((e.Remaining(at) + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	if mins == 1 {
		return "account temporarily locked, try again in 1 minute"
	}
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", mins)
}

func (e *LockedError) Unwrap() error { return ErrLocked }
