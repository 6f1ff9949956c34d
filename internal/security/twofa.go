package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/verification"
)

// TwoFactorSetup is shown to the user exactly once. BackupCodes are not
// recoverable afterwards.
type TwoFactorSetup struct {
	Secret          string    `json:"secret"`
	ProvisioningURI string    `json:"provisioningUri"`
	BackupCodes     []string  `json:"backupCodes"`
	SetupToken      string    `json:"setupToken"`
	Expires         time.Time `json:"expiresAt"`
}

// BeginTwoFactorSetup stores a new pending secret and a fresh batch of
// backup codes. 2FA stays disabled until ConfirmTwoFactorSetup.
func (s *Service) BeginTwoFactorSetup(ctx context.Context, userID string) (TwoFactorSetup, error) {
	if err := s.allow(ctx, s.policies.TwoFactor, userID); err != nil {
		return TwoFactorSetup{}, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if user.TwoFAEnabled {
		return TwoFactorSetup{}, secerr.Validation("twoFa", "two-factor authentication is already enabled")
	}

	secret, err := twofactor.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	uri, err := twofactor.ProvisioningURI(secret, user.Email, s.issuer)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	sealed, err := s.cipher.Encrypt(secret)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if err := s.users.SetTwoFactor(ctx, user.ID, sealed, false); err != nil {
		return TwoFactorSetup{}, err
	}

	codes, err := twofactor.GenerateBackupCodes(twofactor.BackupCodeCount)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = twofactor.HashBackupCode(user.ID, c)
	}
	if err := s.codes.ReplaceAll(ctx, user.ID, hashes); err != nil {
		return TwoFactorSetup{}, err
	}

	issued, err := s.verifier.CreateRequest(ctx, user.ID, verification.TwoFASetup)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	s.logger.Info("two-factor setup started", slog.String("user_id", user.ID))
	return TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: uri,
		BackupCodes:     codes,
		SetupToken:      issued.Token,
		Expires:         issued.Expires,
	}, nil
}

// ConfirmTwoFactorSetup checks a code from the authenticator against the
// pending secret and enables 2FA. Each wrong code uses up one attempt of the
// setup request.
func (s *Service) ConfirmTwoFactorSetup(ctx context.Context, userID string, req TwoFactorConfirmRequest) (VerifiedResult, error) {
	if err := s.allow(ctx, s.policies.TwoFactor, userID); err != nil {
		return VerifiedResult{}, err
	}
	if err := s.check(req); err != nil {
		return VerifiedResult{}, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return VerifiedResult{}, err
	}
	if user.TwoFAEnabled {
		return VerifiedResult{}, secerr.Validation("twoFa", "two-factor authentication is already enabled")
	}
	if user.TwoFASecret == "" {
		return VerifiedResult{}, secerr.Validation("twoFa", "two-factor setup has not been started")
	}

	secret, err := s.cipher.Decrypt(user.TwoFASecret)
	if err != nil {
		s.logger.Error("two-factor secret unreadable", slog.String("user_id", user.ID))
		return VerifiedResult{}, err
	}
	_, err = s.verifier.CheckSetup(ctx, req.SetupToken, user.ID, func() bool {
		return twofactor.VerifyCode(req.Code, secret, twofactor.DefaultSkew, s.now())
	})
	s.metrics.Verification(string(verification.TwoFASetup), outcomeLabel(err))
	if err != nil {
		return VerifiedResult{}, rejection(err, "setup")
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, user.TwoFASecret, true); err != nil {
		return VerifiedResult{}, err
	}
	s.logger.Info("two-factor enabled", slog.String("user_id", user.ID))
	return s.verified(ctx, user.ID)
}

// DisableTwoFactor turns 2FA off after a valid TOTP or backup code. The
// secret and every backup code are removed.
func (s *Service) DisableTwoFactor(ctx context.Context, userID string, req TwoFactorDisableRequest) error {
	if err := s.allow(ctx, s.policies.TwoFactor, userID); err != nil {
		return err
	}
	if err := s.check(req); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFAEnabled {
		return secerr.Validation("twoFa", "two-factor authentication is not enabled")
	}
	if _, err := s.checkSecondFactor(ctx, user, req.Code, req.BackupCode); err != nil {
		return err
	}
	if err := s.users.SetTwoFactor(ctx, user.ID, "", false); err != nil {
		return err
	}
	if err := s.codes.DeleteAll(ctx, user.ID); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}
	s.logger.Info("two-factor disabled", slog.String("user_id", user.ID))
	return nil
}

// BackupCodeSummary counts the user's backup codes.
func (s *Service) BackupCodeSummary(ctx context.Context, userID string) (twofactor.Summary, error) {
	codes, err := s.codes.ListByUser(ctx, userID)
	if err != nil {
		return twofactor.Summary{}, err
	}
	return twofactor.Summarize(codes), nil
}
