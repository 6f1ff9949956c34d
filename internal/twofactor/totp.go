// Package twofactor provides TOTP codes, hashed single-use backup codes and
// the derived verification gating states.
package twofactor

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time step.
	Period = 30 * time.Second
	// DefaultSkew accepts the previous and next step.
	DefaultSkew = 1
	codeDigits  = 6
	secretBytes = 20
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

var codeOpts = totp.ValidateOpts{
	Period:    uint(Period / time.Second),
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret returns a 160-bit random secret, base32 without padding.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI renders the otpauth:// URI authenticator apps import.
func ProvisioningURI(secret, accountLabel, issuer string) (string, error) {
	raw, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
		Period:      codeOpts.Period,
		Digits:      codeOpts.Digits,
		Algorithm:   codeOpts.Algorithm,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// CodeAt computes the code for the step containing t.
func CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, codeOpts)
}

// VerifyCode checks code against every step in [now-skew, now+skew].
// Malformed codes and secrets never verify.
func VerifyCode(code, secret string, skew int, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != codeDigits || !isDigits(code) || secret == "" {
		return false
	}
	if skew < 0 {
		skew = 0
	}
	match := 0
	for i := -skew; i <= skew; i++ {
		want, err := CodeAt(secret, now.Add(time.Duration(i)*Period))
		if err != nil {
			return false
		}
		match |= subtle.ConstantTimeCompare([]byte(want), []byte(code))
	}
	return match == 1
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
