package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/auth"
	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/vault"
	"github.com/naggery/naggery/internal/verification"
)

// NextStepEmailVerification is reported after signup.
const NextStepEmailVerification = "email_verification"

// SignupResult is returned by Signup.
type SignupResult struct {
	User      Profile `json:"user"`
	NextStep  string  `json:"nextStep"`
	EmailSent bool    `json:"emailSent"`
}

// Signup validates the request, creates an inactive account and mails the
// verification link.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (SignupResult, error) {
	if err := s.allow(ctx, s.policies.Login, req.IP); err != nil {
		return SignupResult{}, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return SignupResult{}, err
	}
	if problems := vault.PasswordProblems(req.Password); len(problems) > 0 {
		return SignupResult{}, secerr.Validation("password", strings.Join(problems, "; "))
	}
	phone := vault.FormatPhone(req.Phone)
	if !vault.IsValidPhone(phone) {
		return SignupResult{}, secerr.Validation("phone", "invalid phone number format")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return SignupResult{}, fmt.Errorf("%w: an account with this email already exists", secerr.ErrConflict)
	} else if !errors.Is(err, secerr.ErrNotFound) {
		return SignupResult{}, err
	}
	if _, err := s.users.FindByPhone(ctx, phone); err == nil {
		return SignupResult{}, fmt.Errorf("%w: an account with this phone number already exists", secerr.ErrConflict)
	} else if !errors.Is(err, secerr.ErrNotFound) {
		return SignupResult{}, err
	}

	hash, err := vault.HashPassword(req.Password)
	if err != nil {
		return SignupResult{}, err
	}
	now := s.now().UTC()
	user := account.User{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           phone,
		Gender:          req.Gender,
		PasswordHash:    hash,
		TermsAcceptedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return SignupResult{}, err
	}

	issued, err := s.verifier.CreateRequest(ctx, user.ID, verification.EmailVerification)
	if err != nil {
		return SignupResult{}, err
	}
	sent := s.email.SendVerification(ctx, user.Email, issued.Token, user.Name)
	if !sent {
		s.logger.Warn("verification email not delivered", slog.String("user_id", user.ID))
	}
	s.logger.Info("account created", slog.String("user_id", user.ID))
	return SignupResult{User: ProfileOf(user), NextStep: NextStepEmailVerification, EmailSent: sent}, nil
}

// LoginResult carries either a session or a two-factor challenge.
type LoginResult struct {
	User              Profile     `json:"user"`
	RequiresTwoFactor bool        `json:"requiresTwoFa"`
	Session           *auth.Token `json:"session,omitempty"`
	Challenge         *auth.Token `json:"challenge,omitempty"`
}

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", secerr.ErrInvalidCredentials)

// absentUserHash is checked against when the email is unknown so that both
// credential failures cost one key derivation.
var absentUserHash = sync.OnceValue(func() string {
	h, err := vault.HashPassword("absent-user-placeholder")
	if err != nil {
		panic(fmt.Sprintf("hash placeholder password: %v", err))
	}
	return h
})

// Login checks the lock, the rate limit and the password, in that order.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.check(req); err != nil {
		return LoginResult{}, err
	}

	user, lookupErr := s.users.FindByEmail(ctx, req.Email)
	if lookupErr != nil && !errors.Is(lookupErr, secerr.ErrNotFound) {
		return LoginResult{}, lookupErr
	}
	found := lookupErr == nil
	if found {
		if err := s.lock.CheckLocked(user); err != nil {
			s.metrics.Login("locked")
			return LoginResult{}, err
		}
	}
	if err := s.allow(ctx, s.policies.Login, req.Email); err != nil {
		s.metrics.Login("rate_limited")
		return LoginResult{}, err
	}
	if !found {
		vault.VerifyPassword(req.Password, absentUserHash())
		s.metrics.Login("invalid_credentials")
		return LoginResult{}, errInvalidCredentials
	}

	if !vault.VerifyPassword(req.Password, user.PasswordHash) {
		updated, err := s.lock.RecordFailedLogin(ctx, user)
		if err != nil {
			return LoginResult{}, err
		}
		if s.lock.IsLocked(updated) && !s.lock.IsLocked(user) {
			s.metrics.Lockout()
			s.logger.Warn("account locked", slog.String("user_id", user.ID), slog.Int("attempts", updated.LoginAttempts))
		}
		s.metrics.Login("invalid_credentials")
		return LoginResult{}, errInvalidCredentials
	}

	if !user.EmailVerified() {
		s.metrics.Login("email_unverified")
		return LoginResult{}, secerr.Validation("email", "please verify your email address before logging in")
	}
	if !user.IsActive {
		s.metrics.Login("inactive")
		return LoginResult{}, fmt.Errorf("%w: account is deactivated", secerr.ErrUnauthorized)
	}

	user, err := s.lock.RecordSuccessfulLogin(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	s.upgradeHash(ctx, user, req.Password)

	if user.TwoFAEnabled {
		challenge, err := s.tokens.IssueChallenge(user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		s.metrics.Login("challenge")
		return LoginResult{User: ProfileOf(user), RequiresTwoFactor: true, Challenge: &challenge}, nil
	}
	session, err := s.tokens.IssueSession(user)
	if err != nil {
		return LoginResult{}, err
	}
	s.metrics.Login("ok")
	return LoginResult{User: ProfileOf(user), Session: &session}, nil
}

func (s *Service) upgradeHash(ctx context.Context, user account.User, password string) {
	if !vault.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := vault.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
	}
}

// TwoFactorLoginResult is returned once the second factor is accepted.
type TwoFactorLoginResult struct {
	User           Profile           `json:"user"`
	Session        auth.Token        `json:"session"`
	BackupCodeUsed bool              `json:"backupCodeUsed"`
	BackupCodes    twofactor.Summary `json:"backupCodesCount"`
}

var errInvalidSecondFactor = fmt.Errorf("%w: invalid two-factor code", secerr.ErrInvalidCredentials)

// VerifyTwoFactorLogin exchanges a challenge token and a TOTP or backup
// code for a session.
func (s *Service) VerifyTwoFactorLogin(ctx context.Context, req TwoFactorLoginRequest) (TwoFactorLoginResult, error) {
	if err := s.check(req); err != nil {
		return TwoFactorLoginResult{}, err
	}
	claims, err := s.tokens.ParseChallenge(req.ChallengeToken)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	userID := claims.Subject
	if err := s.allow(ctx, s.policies.TwoFactor, userID); err != nil {
		return TwoFactorLoginResult{}, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	if !user.TwoFAEnabled || user.TwoFASecret == "" {
		return TwoFactorLoginResult{}, secerr.Validation("twoFa", "two-factor authentication is not enabled")
	}
	if err := s.lock.CheckLocked(user); err != nil {
		return TwoFactorLoginResult{}, err
	}

	usedBackup, err := s.checkSecondFactor(ctx, user, req.Code, req.BackupCode)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	user, err = s.lock.RecordSuccessfulLogin(ctx, user)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	session, err := s.tokens.IssueSession(user)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	summary, err := s.BackupCodeSummary(ctx, user.ID)
	if err != nil {
		return TwoFactorLoginResult{}, err
	}
	s.metrics.Login("ok")
	return TwoFactorLoginResult{User: ProfileOf(user), Session: session, BackupCodeUsed: usedBackup, BackupCodes: summary}, nil
}

// checkSecondFactor accepts a TOTP code or consumes a backup code. It
// reports whether a backup code was spent.
func (s *Service) checkSecondFactor(ctx context.Context, user account.User, code, backup string) (bool, error) {
	if code != "" {
		secret, err := s.cipher.Decrypt(user.TwoFASecret)
		if err != nil {
			s.logger.Error("two-factor secret unreadable", slog.String("user_id", user.ID))
			return false, err
		}
		if !twofactor.VerifyCode(code, secret, twofactor.DefaultSkew, s.now()) {
			s.metrics.Verification("TOTP", "mismatch")
			return false, errInvalidSecondFactor
		}
		s.metrics.Verification("TOTP", "verified")
		return false, nil
	}

	codes, err := s.codes.ListByUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	match := twofactor.ValidateBackupCode(user.ID, codes, backup)
	if match == nil {
		s.metrics.Verification("BACKUP_CODE", "mismatch")
		return false, errInvalidSecondFactor
	}
	ok, err := s.codes.MarkUsed(ctx, match.ID, s.now())
	if err != nil {
		return false, err
	}
	if !ok {
		s.metrics.Verification("BACKUP_CODE", "already_used")
		return false, errInvalidSecondFactor
	}
	s.metrics.Verification("BACKUP_CODE", "verified")
	s.logger.Info("backup code used", slog.String("user_id", user.ID))
	return true, nil
}
