package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/secerr"
)

func TestSessionRoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret", "Naggery", time.Hour, nil)
	require.NoError(t, err)

	verified := time.Now()
	tok, err := iss.IssueSession(account.User{ID: "u-1", Email: "ann@example.com", EmailVerifiedAt: &verified})
	require.NoError(t, err)

	claims, err := iss.ParseSession(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.False(t, claims.TwoFAEnabled)
}

func TestChallengeCannotBeUsedAsSession(t *testing.T) {
	iss, err := NewIssuer("test-secret", "Naggery", time.Hour, nil)
	require.NoError(t, err)

	tok, err := iss.IssueChallenge("u-1")
	require.NoError(t, err)

	_, err = iss.ParseSession(tok.Value)
	assert.ErrorIs(t, err, secerr.ErrUnauthorized)

	claims, err := iss.ParseChallenge(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	now := time.Now()
	iss, err := NewIssuer("test-secret", "Naggery", time.Minute, func() time.Time { return now })
	require.NoError(t, err)
	tok, err := iss.IssueSession(account.User{ID: "u-1"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = iss.ParseSession(tok.Value)
	assert.ErrorIs(t, err, secerr.ErrUnauthorized)

	other, err := NewIssuer("other-secret", "Naggery", time.Hour, nil)
	require.NoError(t, err)
	fresh, err := other.IssueSession(account.User{ID: "u-1"})
	require.NoError(t, err)
	_, err = iss.ParseSession(fresh.Value)
	assert.ErrorIs(t, err, secerr.ErrUnauthorized)

	_, err = NewIssuer("", "Naggery", time.Hour, nil)
	assert.Error(t, err)
}
