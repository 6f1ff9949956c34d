// Package security composes the vault, rate limiter, verification manager,
// two-factor and lockout components into the signup, login and verification
// flows. HTTP handlers call only this package.
package security

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/auth"
	"github.com/naggery/naggery/internal/metrics"
	"github.com/naggery/naggery/internal/notification"
	"github.com/naggery/naggery/internal/ratelimit"
	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/validation"
	"github.com/naggery/naggery/internal/vault"
	"github.com/naggery/naggery/internal/verification"
)

// Deps are the collaborators a Service is built from.
type Deps struct {
	Users       account.Repository
	BackupCodes twofactor.BackupCodeRepository
	Verifier    *verification.Manager
	Limiter     *ratelimit.Limiter
	Cipher      *vault.Cipher
	Tokens      *auth.Issuer
	Email       notification.EmailSender
	SMS         notification.SmsSender
	Metrics     *metrics.Security
	Logger      *slog.Logger
	// Issuer labels provisioning URIs in authenticator apps.
	Issuer string
	Now    func() time.Time
}

// Service runs the account security flows.
type Service struct {
	users    account.Repository
	codes    twofactor.BackupCodeRepository
	verifier *verification.Manager
	limiter  *ratelimit.Limiter
	policies ratelimit.Policies
	lock     *account.LockPolicy
	cipher   *vault.Cipher
	tokens   *auth.Issuer
	email    notification.EmailSender
	sms      notification.SmsSender
	metrics  *metrics.Security
	logger   *slog.Logger
	issuer   string
	now      func() time.Time
	validate *validation.Validator
}

// NewService wires a Service. Metrics may be nil.
func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	issuer := d.Issuer
	if issuer == "" {
		issuer = "Naggery"
	}
	return &Service{
		users:    d.Users,
		codes:    d.BackupCodes,
		verifier: d.Verifier,
		limiter:  d.Limiter,
		policies: d.Limiter.Policies(),
		lock:     account.NewLockPolicy(d.Users, now),
		cipher:   d.Cipher,
		tokens:   d.Tokens,
		email:    d.Email,
		sms:      d.SMS,
		metrics:  d.Metrics,
		logger:   logger,
		issuer:   issuer,
		now:      now,
		validate: validation.New(),
	}
}

// Profile is the client view of a user.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Gender        string    `json:"gender,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	TwoFAEnabled  bool      `json:"twoFaEnabled"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProfileOf projects u without secrets.
func ProfileOf(u account.User) Profile {
	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Gender:        u.Gender,
		EmailVerified: u.EmailVerified(),
		PhoneVerified: u.PhoneVerified(),
		TwoFAEnabled:  u.TwoFAEnabled,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
	}
}

func (s *Service) allow(ctx context.Context, p ratelimit.Policy, identifier string) error {
	_, err := s.limiter.Allow(ctx, p, identifier)
	var rl *secerr.RateLimitError
	if errors.As(err, &rl) {
		s.logger.Warn("rate limit exceeded", slog.String("action", rl.Action), slog.Duration("retry_after", rl.RetryAfter))
	}
	return err
}

// rejection turns a verification refusal into the caller-facing error.
func rejection(err error, what string) error {
	switch {
	case errors.Is(err, secerr.ErrNotFound):
		return secerr.Validation("token", "invalid "+what+" token")
	case errors.Is(err, secerr.ErrExpired):
		return secerr.Validation("token", what+" has expired, request a new one")
	case errors.Is(err, secerr.ErrAlreadyVerified):
		return secerr.Validation("token", what+" was already completed")
	case errors.Is(err, secerr.ErrAttemptsExceeded):
		return secerr.Validation("code", "too many attempts, request a new code")
	case errors.Is(err, secerr.ErrCodeMismatch):
		return secerr.Validation("code", "invalid verification code")
	}
	return err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, secerr.ErrExpired):
		return "expired"
	case errors.Is(err, secerr.ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, secerr.ErrAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, secerr.ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, secerr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
