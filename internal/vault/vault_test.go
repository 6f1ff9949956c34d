package vault

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/naggery/naggery/internal/secerr"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	require.NoError(t, err)

	salt, sum, ok := strings.Cut(hash, ":")
	require.True(t, ok)
	assert.Len(t, salt, saltLen*2)
	assert.Len(t, sum, pbkdf2KeyLen*2)

	assert.True(t, VerifyPassword("Str0ng!pass", hash))
	assert.False(t, VerifyPassword("Str0ng!pasS", hash))
	assert.False(t, VerifyPassword("", hash))

	other, err := HashPassword("Str0ng!pass")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, secerr.ErrValidation)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("x", "nocolon"))
	assert.False(t, VerifyPassword("x", "abcd:zz"))
	assert.False(t, VerifyPassword("x", ":"))
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Old!pass1"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("Old!pass1", string(legacy)))
	assert.False(t, VerifyPassword("wrong", string(legacy)))
	assert.True(t, NeedsRehash(string(legacy)))

	fresh, err := HashPassword("Old!pass1")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(fresh))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ct, err := Encrypt("JBSWY3DPEHPK3PXP", "test-key")
	require.NoError(t, err)

	pt, err := Decrypt(ct, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", pt)

	again, err := Encrypt("JBSWY3DPEHPK3PXP", "test-key")
	require.NoError(t, err)
	assert.NotEqual(t, ct, again, "nonce must be fresh per call")
}

func TestDecryptFailures(t *testing.T) {
	ct, err := Encrypt("secret", "key-a")
	require.NoError(t, err)

	_, err = Decrypt(ct, "key-b")
	assert.ErrorIs(t, err, secerr.ErrDecryption)

	_, err = Decrypt("!!not-base64!!", "key-a")
	assert.ErrorIs(t, err, secerr.ErrDecryption)

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), "key-a")
	assert.ErrorIs(t, err, secerr.ErrDecryption)
}

func TestDecryptRejectsAnyFlippedBit(t *testing.T) {
	c, err := NewCipher("key-a")
	require.NoError(t, err)
	ct, err := c.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)

	// Covers the nonce, the sealed body and the tag.
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 1 << bit
			_, err := c.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			require.ErrorIs(t, err, secerr.ErrDecryption, "byte %d bit %d", i, bit)
		}
	}
}

func TestEncryptRequiresKey(t *testing.T) {
	_, err := Encrypt("secret", "")
	assert.ErrorIs(t, err, secerr.ErrEncryption)
}

func TestAPIKeyFormat(t *testing.T) {
	assert.NoError(t, ValidateAPIKeyFormat("sk-abcdefghijklmnopqrstu", ProviderOpenAI))
	assert.NoError(t, ValidateAPIKeyFormat("sk-ant-abcdefghijklmnopq", ProviderClaude))
	assert.ErrorIs(t, ValidateAPIKeyFormat("sk-abcdefghijklmnopqrstu", ProviderClaude), secerr.ErrValidation)
	assert.ErrorIs(t, ValidateAPIKeyFormat("sk-short", ProviderOpenAI), secerr.ErrValidation)
	assert.ErrorIs(t, ValidateAPIKeyFormat("   ", ProviderOpenAI), secerr.ErrValidation)
	assert.ErrorIs(t, ValidateAPIKeyFormat("sk-abcdefghijklmnopqrstu", Provider("MISTRAL")), secerr.ErrValidation)

	p, ok := ParseProvider("claude")
	assert.True(t, ok)
	assert.Equal(t, ProviderClaude, p)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("sk-1234"))
	assert.Equal(t, "sk-a****5678", MaskAPIKey("sk-abc5678"))
	assert.Equal(t, "sk-a***********mnop", MaskAPIKey("sk-abcdefghijklmnop"))
}

func TestPasswordProblems(t *testing.T) {
	assert.Empty(t, PasswordProblems("Str0ng!pass"))
	assert.Len(t, PasswordProblems("weak"), 4)
	assert.Contains(t, PasswordProblems("NoDigits!!"), "Password must contain at least one number")
}

func TestPhoneAndEmail(t *testing.T) {
	assert.Equal(t, "+15551234567", FormatPhone("(555) 123-4567"))
	assert.Equal(t, "+447700900123", FormatPhone("+44 7700 900123"))
	assert.True(t, IsValidPhone("+15551234567"))
	assert.False(t, IsValidPhone("15551234567"))
	assert.False(t, IsValidPhone("+0123"))
	assert.True(t, IsValidEmail("a@b.io"))
	assert.False(t, IsValidEmail("a@b"))
	assert.Equal(t, "********4567", MaskPhone("+15551234567"))
	assert.Equal(t, "a***@b.io", MaskEmail("alice@b.io"))
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := RandomDigits(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
	tok, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 64)
	assert.Len(t, HashToken(tok), 64)
}
