package twofactor

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B secret, ASCII "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestCodeAtMatchesRFCVectors(t *testing.T) {
	code, err := CodeAt(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", code)

	code, err = CodeAt(rfcSecret, time.Unix(1111111109, 0))
	require.NoError(t, err)
	assert.Equal(t, "081804", code)
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	T := time.Unix(1_700_000_010, 0)
	code, err := CodeAt(secret, T)
	require.NoError(t, err)

	assert.True(t, VerifyCode(code, secret, DefaultSkew, T))
	assert.True(t, VerifyCode(code, secret, DefaultSkew, T.Add(30*time.Second)))
	assert.True(t, VerifyCode(code, secret, DefaultSkew, T.Add(-30*time.Second)))
	assert.False(t, VerifyCode(code, secret, DefaultSkew, T.Add(90*time.Second)))
	assert.False(t, VerifyCode(code, secret, 0, T.Add(30*time.Second)))
}

func TestVerifyCodeRejectsMalformed(t *testing.T) {
	now := time.Unix(59, 0)
	assert.True(t, VerifyCode("287082", rfcSecret, 0, now))
	assert.False(t, VerifyCode("28708", rfcSecret, 0, now))
	assert.False(t, VerifyCode("28708a", rfcSecret, 0, now))
	assert.False(t, VerifyCode("2870822", rfcSecret, 0, now))
	assert.False(t, VerifyCode("287082", "", 0, now))
	assert.False(t, VerifyCode("287082", "!!!", 0, now))
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, s, 32)
	raw, err := b32.DecodeString(s)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
}

func TestProvisioningURI(t *testing.T) {
	uri, err := ProvisioningURI(rfcSecret, "ann@example.com", "Naggery")
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	q := u.Query()
	assert.Equal(t, rfcSecret, q.Get("secret"))
	assert.Equal(t, "Naggery", q.Get("issuer"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
	assert.True(t, strings.Contains(u.Path, "ann@example.com"))
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(BackupCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Len(t, c, BackupCodeLength)
		for _, r := range c {
			assert.True(t, strings.ContainsRune(BackupCodeAlphabet, r))
		}
		assert.False(t, seen[c])
		seen[c] = true
	}
}

func TestValidateBackupCodeCaseInsensitiveAndSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBackupCodeRepository()
	codes, err := GenerateBackupCodes(3)
	require.NoError(t, err)

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = HashBackupCode("user-1", c)
	}
	require.NoError(t, repo.ReplaceAll(ctx, "user-1", hashes))

	stored, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)

	submitted := strings.ToLower(codes[1][:4]) + "-" + strings.ToLower(codes[1][4:])
	match := ValidateBackupCode("user-1", stored, submitted)
	require.NotNil(t, match)
	ok, err := repo.MarkUsed(ctx, match.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(ctx, match.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second consume must fail")

	stored, err = repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, ValidateBackupCode("user-1", stored, codes[1]))
	assert.Nil(t, ValidateBackupCode("user-2", stored, codes[0]), "codes are bound to their owner")
	assert.Nil(t, ValidateBackupCode("user-1", stored, ""))

	s := Summarize(stored)
	assert.Equal(t, Summary{Total: 3, Used: 1, Remaining: 2}, s)
}

func TestStateMachine(t *testing.T) {
	assert.Equal(t, NeedsEmail, StateOf(false, true, true))
	assert.Equal(t, NeedsPhone, StateOf(true, false, true))
	assert.Equal(t, NeedsTwoFA, StateOf(true, true, false))
	assert.Equal(t, Complete, StateOf(true, true, true))

	s := NeedsEmail
	steps := []State{s}
	for s != Complete {
		s = Next(s)
		steps = append(steps, s)
	}
	assert.Equal(t, []State{NeedsEmail, NeedsPhone, NeedsTwoFA, Complete}, steps)
	assert.Equal(t, Complete, Next(Complete))
}
