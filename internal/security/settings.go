package security

import (
	"context"
	"strings"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/vault"
)

// Settings is the security overview of an account.
type Settings struct {
	User     Profile        `json:"user"`
	Security SecurityStatus `json:"security"`
}

// SecurityStatus summarises which verification steps are done.
type SecurityStatus struct {
	EmailVerified        bool              `json:"emailVerified"`
	PhoneVerified        bool              `json:"phoneVerified"`
	TwoFAEnabled         bool              `json:"twoFaEnabled"`
	BackupCodesGenerated bool              `json:"backupCodesGenerated"`
	VerificationStep     twofactor.State   `json:"verificationStep"`
	BackupCodes          twofactor.Summary `json:"backupCodesCount"`
}

// SecuritySettings reports flags, the gating state and backup code counts.
func (s *Service) SecuritySettings(ctx context.Context, userID string) (Settings, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	summary, err := s.BackupCodeSummary(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		User: ProfileOf(user),
		Security: SecurityStatus{
			EmailVerified:        user.EmailVerified(),
			PhoneVerified:        user.PhoneVerified(),
			TwoFAEnabled:         user.TwoFAEnabled,
			BackupCodesGenerated: summary.Total > 0,
			VerificationStep:     twofactor.StateOf(user.EmailVerified(), user.PhoneVerified(), user.TwoFAEnabled),
			BackupCodes:          summary,
		},
	}, nil
}

// UpdateProfile changes the name or phone. A new phone must be verified again.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req ProfileRequest) (Profile, error) {
	if req.Name == nil && req.Phone == nil {
		return Profile{}, secerr.Validation("body", "no valid fields to update")
	}
	if err := s.check(req); err != nil {
		return Profile{}, err
	}
	var upd account.ProfileUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return Profile{}, secerr.Validation("name", "is required")
		}
		upd.Name = &name
	}
	if req.Phone != nil {
		phone := vault.FormatPhone(*req.Phone)
		if !vault.IsValidPhone(phone) {
			return Profile{}, secerr.Validation("phone", "invalid phone number format")
		}
		upd.Phone = &phone
	}
	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(user), nil
}
