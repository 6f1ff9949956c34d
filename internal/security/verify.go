package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/vault"
	"github.com/naggery/naggery/internal/verification"
)

// VerifiedResult reports the account after a successful verification.
type VerifiedResult struct {
	User     Profile         `json:"user"`
	NextStep twofactor.State `json:"nextStep"`
}

// VerifyEmail consumes an emailed link token and activates the account.
func (s *Service) VerifyEmail(ctx context.Context, token, ip string) (VerifiedResult, error) {
	if err := s.allow(ctx, s.policies.Verification, ip); err != nil {
		return VerifiedResult{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifiedResult{}, secerr.Validation("token", "verification token is required")
	}
	req, err := s.verifier.GetByToken(ctx, token)
	if err == nil && req.Type != verification.EmailVerification {
		err = secerr.ErrNotFound
	}
	if err == nil {
		req, err = s.verifier.CheckToken(ctx, token)
	}
	s.metrics.Verification(string(verification.EmailVerification), outcomeLabel(err))
	if err != nil {
		return VerifiedResult{}, rejection(err, "verification")
	}

	if err := s.users.MarkEmailVerified(ctx, req.UserID, s.now()); err != nil {
		return VerifiedResult{}, err
	}
	return s.verified(ctx, req.UserID)
}

// ResendEmailVerification issues a fresh link for an unverified account.
// It reports whether the mail was handed off.
func (s *Service) ResendEmailVerification(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !vault.IsValidEmail(email) {
		return false, secerr.Validation("email", "invalid email format")
	}
	if err := s.allow(ctx, s.policies.Verification, email); err != nil {
		return false, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.EmailVerified() {
		return false, fmt.Errorf("%w: email is already verified", secerr.ErrAlreadyVerified)
	}
	issued, err := s.verifier.CreateRequest(ctx, user.ID, verification.EmailVerification)
	if err != nil {
		return false, err
	}
	sent := s.email.SendVerification(ctx, user.Email, issued.Token, user.Name)
	if !sent {
		s.logger.Warn("verification email not delivered", slog.String("user_id", user.ID))
	}
	return sent, nil
}

// SMSSent describes an issued SMS challenge. Token must be presented with
// the code.
type SMSSent struct {
	Token       string    `json:"token"`
	MaskedPhone string    `json:"maskedPhone"`
	Expires     time.Time `json:"expiresAt"`
	Sent        bool      `json:"sent"`
}

// SendSMSCode texts a verification code to an account's phone.
func (s *Service) SendSMSCode(ctx context.Context, req SMSSendRequest) (SMSSent, error) {
	if err := s.check(req); err != nil {
		return SMSSent{}, err
	}
	phone := vault.FormatPhone(req.Phone)
	if !vault.IsValidPhone(phone) {
		return SMSSent{}, secerr.Validation("phone", "invalid phone number format")
	}
	if err := s.allow(ctx, s.policies.SMS, phone); err != nil {
		return SMSSent{}, err
	}

	var (
		user account.User
		err  error
	)
	if req.UserID != "" {
		user, err = s.users.FindByID(ctx, req.UserID)
		if err == nil && user.Phone != phone {
			return SMSSent{}, secerr.Validation("phone", "phone does not match the account")
		}
	} else {
		user, err = s.users.FindByPhone(ctx, phone)
	}
	if err != nil {
		return SMSSent{}, err
	}
	if user.PhoneVerified() {
		return SMSSent{}, fmt.Errorf("%w: phone is already verified", secerr.ErrAlreadyVerified)
	}

	issued, err := s.verifier.CreateRequest(ctx, user.ID, verification.SMSVerification)
	if err != nil {
		return SMSSent{}, err
	}
	sent := s.sms.SendCode(ctx, phone, issued.Code)
	if !sent {
		s.logger.Warn("sms code not delivered", slog.String("user_id", user.ID))
	}
	return SMSSent{Token: issued.Token, MaskedPhone: vault.MaskPhone(phone), Expires: issued.Expires, Sent: sent}, nil
}

// VerifySMSCode checks a texted code and marks the phone verified.
func (s *Service) VerifySMSCode(ctx context.Context, req SMSVerifyRequest) (VerifiedResult, error) {
	if err := s.allow(ctx, s.policies.Verification, req.IP+":"+req.Token); err != nil {
		return VerifiedResult{}, err
	}
	if err := s.check(req); err != nil {
		return VerifiedResult{}, err
	}
	current, err := s.verifier.GetByToken(ctx, req.Token)
	if err == nil && current.Type != verification.SMSVerification {
		err = secerr.ErrNotFound
	}
	if err == nil {
		current, err = s.verifier.CheckCode(ctx, req.Token, req.Code)
	}
	s.metrics.Verification(string(verification.SMSVerification), outcomeLabel(err))
	if err != nil {
		return VerifiedResult{}, rejection(err, "verification")
	}
	if err := s.users.MarkPhoneVerified(ctx, current.UserID, s.now()); err != nil {
		return VerifiedResult{}, err
	}
	return s.verified(ctx, current.UserID)
}

func (s *Service) verified(ctx context.Context, userID string) (VerifiedResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return VerifiedResult{}, err
	}
	return VerifiedResult{
		User:     ProfileOf(user),
		NextStep: twofactor.StateOf(user.EmailVerified(), user.PhoneVerified(), user.TwoFAEnabled),
	}, nil
}
