package account

import "time"

// Gender values accepted at signup.
const (
	GenderMale           = "MALE"
	GenderFemale         = "FEMALE"
	GenderOther          = "OTHER"
	GenderPreferNotToSay = "PREFER_NOT_TO_SAY"
)

// User is the security-relevant slice of an account.
type User struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	Gender          string
	PasswordHash    string
	EmailVerifiedAt *time.Time
	PhoneVerifiedAt *time.Time
	// TwoFASecret holds the vault-encrypted TOTP secret, empty when none.
	TwoFASecret     string
	TwoFAEnabled    bool
	LoginAttempts   int
	LockedUntil     *time.Time
	IsActive        bool
	TermsAcceptedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailVerified reports whether the email step is done.
func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// PhoneVerified reports whether the phone step is done.
func (u User) PhoneVerified() bool { return u.PhoneVerifiedAt != nil }

// ProfileUpdate carries optional profile changes. Nil fields are left alone.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}
