package verification

import "time"

// Type identifies what a verification request proves.
type Type string

const (
	EmailVerification Type = "EMAIL_VERIFICATION"
	EmailChange       Type = "EMAIL_CHANGE"
	SMSVerification   Type = "SMS_VERIFICATION"
	PasswordReset     Type = "PASSWORD_RESET"
	TwoFASetup        Type = "TWO_FA_SETUP"
)

const (
	// MaxAttempts bounds how many times a request may be checked.
	MaxAttempts = 5
	TokenBytes  = 32
	CodeDigits  = 6

	emailTTL = 24 * time.Hour
	shortTTL = 10 * time.Minute
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case EmailVerification, EmailChange, SMSVerification, PasswordReset, TwoFASetup:
		return true
	}
	return false
}

// IsEmail reports types proven by possession of an emailed link.
func (t Type) IsEmail() bool {
	return t == EmailVerification || t == EmailChange
}

// TTL is the lifetime of a request of type t.
func (t Type) TTL() time.Duration {
	if t.IsEmail() {
		return emailTTL
	}
	return shortTTL
}

// Request is a pending proof of control over a channel.
type Request struct {
	ID        string
	UserID    string
	Type      Type
	Token     string
	Code      string
	Attempts  int
	Verified  bool
	Expires   time.Time
	CreatedAt time.Time
}

// Issued is what CreateRequest hands back to the caller for delivery.
type Issued struct {
	Token   string
	Code    string
	Expires time.Time
}
