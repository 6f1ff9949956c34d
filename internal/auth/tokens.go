// Package auth issues and parses the signed session and two-factor
// challenge tokens handed to clients.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/secerr"
)

const (
	PurposeSession   = "session"
	PurposeChallenge = "2fa"

	DefaultChallengeTTL = 5 * time.Minute
)

// Claims carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Purpose       string `json:"purpose"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	PhoneVerified bool   `json:"phone_verified,omitempty"`
	TwoFAEnabled  bool   `json:"two_fa_enabled,omitempty"`
}

// Token is a signed token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret       []byte
	issuer       string
	sessionTTL   time.Duration
	challengeTTL time.Duration
	now          func() time.Time
}

// NewIssuer builds an Issuer. now may be nil.
func NewIssuer(secret, issuer string, sessionTTL time.Duration, now func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, sessionTTL: sessionTTL, challengeTTL: DefaultChallengeTTL, now: now}, nil
}

// IssueSession signs a session token for a fully authenticated user.
func (i *Issuer) IssueSession(u account.User) (Token, error) {
	return i.sign(Claims{
		Purpose:       PurposeSession,
		Email:         u.Email,
		EmailVerified: u.EmailVerified(),
		PhoneVerified: u.PhoneVerified(),
		TwoFAEnabled:  u.TwoFAEnabled,
	}, u.ID, i.sessionTTL)
}

// IssueChallenge signs a short-lived token proving the password step passed.
func (i *Issuer) IssueChallenge(userID string) (Token, error) {
	return i.sign(Claims{Purpose: PurposeChallenge}, userID, i.challengeTTL)
}

// ParseSession validates a session token.
func (i *Issuer) ParseSession(raw string) (Claims, error) {
	return i.parse(raw, PurposeSession)
}

// ParseChallenge validates a challenge token.
func (i *Issuer) ParseChallenge(raw string) (Claims, error) {
	return i.parse(raw, PurposeChallenge)
}

func (i *Issuer) sign(c Claims, subject string, ttl time.Duration) (Token, error) {
	now := i.now()
	exp := now.Add(ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

func (i *Issuer) parse(raw, purpose string) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", secerr.ErrUnauthorized, err)
	}
	if c.Purpose != purpose || c.Subject == "" {
		return Claims{}, fmt.Errorf("%w: wrong token purpose", secerr.ErrUnauthorized)
	}
	return c, nil
}
