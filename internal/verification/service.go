// Package verification issues and checks single-use proofs of control over
// an email address or phone number.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/vault"
)

// Manager owns the request lifecycle.
type Manager struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for maintenance messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager constructs a Manager backed by repo.
func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{repo: repo, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest issues a new request. Only SMS requests carry a code.
func (m *Manager) CreateRequest(ctx context.Context, userID string, typ Type) (Issued, error) {
	if !typ.Valid() {
		return Issued{}, secerr.Validation("type", "unknown verification type")
	}
	now := m.now().UTC()
	if _, err := m.repo.DeleteExpiredForUser(ctx, userID, typ, now); err != nil {
		return Issued{}, fmt.Errorf("purge expired requests: %w", err)
	}

	token, err := vault.RandomToken(TokenBytes)
	if err != nil {
		return Issued{}, err
	}
	var code string
	if typ == SMSVerification {
		if code, err = vault.RandomDigits(CodeDigits); err != nil {
			return Issued{}, err
		}
	}

	req := Request{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Token:     token,
		Code:      code,
		Expires:   now.Add(typ.TTL()),
		CreatedAt: now,
	}
	if err := m.repo.Create(ctx, req); err != nil {
		return Issued{}, fmt.Errorf("create verification request: %w", err)
	}
	return Issued{Token: token, Code: code, Expires: req.Expires}, nil
}

// CheckCode verifies a code-bearing request. Every call that passes the
// gates consumes one attempt, matching or not. The error names the reason
// for a failure: ErrNotFound, ErrExpired, ErrAlreadyVerified,
// ErrAttemptsExceeded or ErrCodeMismatch.
func (m *Manager) CheckCode(ctx context.Context, token, code string) (Request, error) {
	req, err := m.consume(ctx, token)
	if err != nil {
		return req, err
	}
	if req.Code == "" || subtle.ConstantTimeCompare([]byte(req.Code), []byte(code)) != 1 {
		return req, secerr.ErrCodeMismatch
	}
	return m.finish(ctx, req)
}

// VerifyByCode is CheckCode reduced to a boolean. Only infrastructure
// failures are returned as errors.
func (m *Manager) VerifyByCode(ctx context.Context, token, code string) (bool, error) {
	_, err := m.CheckCode(ctx, token, code)
	return outcome(err)
}

// CheckToken verifies an emailed link, where possession of the token is the
// proof. Requests of any other type are refused with ErrNotFound.
func (m *Manager) CheckToken(ctx context.Context, token string) (Request, error) {
	current, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return Request{}, err
	}
	if !current.Type.IsEmail() {
		return current, secerr.ErrNotFound
	}
	req, err := m.consume(ctx, token)
	if err != nil {
		return req, err
	}
	return m.finish(ctx, req)
}

// CheckSetup verifies a TWO_FA_SETUP request owned by userID. The attempt is
// consumed before accept runs, so every rejected authenticator code counts
// against MaxAttempts. accept reports whether the submitted code is valid.
func (m *Manager) CheckSetup(ctx context.Context, token, userID string, accept func() bool) (Request, error) {
	current, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return Request{}, err
	}
	if current.Type != TwoFASetup || current.UserID != userID {
		return current, secerr.ErrNotFound
	}
	req, err := m.consume(ctx, token)
	if err != nil {
		return req, err
	}
	if !accept() {
		return req, secerr.ErrCodeMismatch
	}
	return m.finish(ctx, req)
}

// VerifyByTokenOnly is CheckToken reduced to a boolean.
func (m *Manager) VerifyByTokenOnly(ctx context.Context, token string) (bool, error) {
	_, err := m.CheckToken(ctx, token)
	return outcome(err)
}

// GetByToken returns the request or secerr.ErrNotFound.
func (m *Manager) GetByToken(ctx context.Context, token string) (Request, error) {
	return m.repo.FindByToken(ctx, token)
}

// CleanupExpired deletes every request past its expiry.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired requests: %w", err)
	}
	return n, nil
}

func (m *Manager) consume(ctx context.Context, token string) (Request, error) {
	now := m.now().UTC()
	req, ok, err := m.repo.ConsumeAttempt(ctx, token, now, MaxAttempts)
	if err != nil {
		return Request{}, fmt.Errorf("consume attempt: %w", err)
	}
	if ok {
		return req, nil
	}
	current, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return Request{}, err
	}
	return current, gateReason(current, now)
}

func (m *Manager) finish(ctx context.Context, req Request) (Request, error) {
	changed, err := m.repo.MarkVerified(ctx, req.ID)
	if err != nil {
		return req, fmt.Errorf("mark verified: %w", err)
	}
	if !changed {
		return req, secerr.ErrAlreadyVerified
	}
	req.Verified = true
	return req, nil
}

// gateReason explains why a request is closed, in precedence order.
func gateReason(req Request, now time.Time) error {
	switch {
	case !now.Before(req.Expires):
		return secerr.ErrExpired
	case req.Verified:
		return secerr.ErrAlreadyVerified
	case req.Attempts >= MaxAttempts:
		return secerr.ErrAttemptsExceeded
	default:
		// Closed between the two reads; the only transitions left are
		// verification by a concurrent call or the final attempt.
		return secerr.ErrAttemptsExceeded
	}
}

func outcome(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case IsRejection(err):
		return false, nil
	default:
		return false, err
	}
}

// IsRejection reports whether err is a normal verification refusal rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, secerr.ErrNotFound) ||
		errors.Is(err, secerr.ErrExpired) ||
		errors.Is(err, secerr.ErrAlreadyVerified) ||
		errors.Is(err, secerr.ErrAttemptsExceeded) ||
		errors.Is(err, secerr.ErrCodeMismatch)
}
