// Package vault protects secrets at rest: password hashes, symmetric field
// encryption and provider API keys. It performs no I/O.
package vault

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	"github.com/naggery/naggery/internal/secerr"
)

const (
	// PBKDF2Iterations is the work factor for new password hashes.
	PBKDF2Iterations = 210000
	pbkdf2KeyLen     = 64
	saltLen          = 16
)

// HashPassword derives a salted PBKDF2-SHA512 hash encoded as hex(salt):hex(hash).
func HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", secerr.Validation("password", "password is required")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	sum := pbkdf2.Key([]byte(plaintext), []byte(saltHex), PBKDF2Iterations, pbkdf2KeyLen, sha512.New)
	return saltHex + ":" + hex.EncodeToString(sum), nil
}

// VerifyPassword reports whether plaintext matches the stored hash. Unknown or
// malformed hashes never match.
func VerifyPassword(plaintext, stored string) bool {
	if plaintext == "" || stored == "" {
		return false
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil
	}
	saltHex, hashHex, ok := strings.Cut(stored, ":")
	if !ok || saltHex == "" {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != pbkdf2KeyLen {
		return false
	}
	got := pbkdf2.Key([]byte(plaintext), []byte(saltHex), PBKDF2Iterations, pbkdf2KeyLen, sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports hashes written in a legacy format.
func NeedsRehash(stored string) bool {
	return isBcrypt(stored)
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
