package vault

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	phoneStrip   = regexp.MustCompile(`[^\d+]`)
)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// PasswordProblems lists every strength rule the password fails. An empty
// result means the password is acceptable.
func PasswordProblems(p string) []string {
	var problems []string
	if len(p) < 8 {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsLower(r) && r < unicode.MaxASCII:
			lower = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !special {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}

// IsValidEmail performs a shape check only.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone requires E.164 form.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// FormatPhone strips formatting characters and defaults to the +1 country
// code when none is given.
func FormatPhone(phone string) string {
	p := phoneStrip.ReplaceAllString(phone, "")
	if strings.HasPrefix(p, "+") {
		return p
	}
	return "+1" + p
}

// MaskPhone hides all but the last four digits, for logs and UI hints.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskEmail keeps the first character of the local part.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "****"
	}
	return local[:1] + "***@" + domain
}
