package security

// SignupRequest creates an account.
type SignupRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	Gender        string `json:"gender" validate:"required,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
	TermsAccepted bool   `json:"termsAccepted" validate:"eq=true"`
	IP            string `json:"-"`
}

// LoginRequest starts a session with email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// TwoFactorLoginRequest completes a login that returned a challenge.
// Exactly one of Code and BackupCode is expected.
type TwoFactorLoginRequest struct {
	ChallengeToken string `json:"challengeToken" validate:"required"`
	Code           string `json:"code" validate:"required_without=BackupCode,omitempty,len=6,numeric"`
	BackupCode     string `json:"backupCode" validate:"required_without=Code,omitempty,min=8,max=12"`
}

// SMSSendRequest asks for a code to be texted to Phone. UserID is optional;
// without it the account is found by phone.
type SMSSendRequest struct {
	Phone  string `json:"phone" validate:"required"`
	UserID string `json:"userId" validate:"omitempty,uuid"`
}

// SMSVerifyRequest submits a texted code.
type SMSVerifyRequest struct {
	Token string `json:"token" validate:"required,hexadecimal"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
	IP    string `json:"-"`
}

// TwoFactorConfirmRequest finishes authenticator setup.
type TwoFactorConfirmRequest struct {
	SetupToken string `json:"setupToken" validate:"required,hexadecimal"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

// TwoFactorDisableRequest proves possession before 2FA is turned off.
type TwoFactorDisableRequest struct {
	Code       string `json:"code" validate:"required_without=BackupCode,omitempty,len=6,numeric"`
	BackupCode string `json:"backupCode" validate:"required_without=Code,omitempty,min=8,max=12"`
}

// ProfileRequest changes the display name or phone. Nil fields are kept.
type ProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone *string `json:"phone" validate:"omitempty"`
}

func (s *Service) check(req any) error {
	return s.validate.Struct(req)
}
