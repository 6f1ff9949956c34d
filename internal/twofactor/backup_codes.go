package twofactor

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// BackupCodeAlphabet omits look-alike characters (0/O, 1/I).
	BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	BackupCodeCount    = 10
	BackupCodeLength   = 8
)

// BackupCode is a stored single-use recovery code. Only its hash is kept.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// GenerateBackupCodes returns n distinct random codes.
func GenerateBackupCodes(n int) ([]string, error) {
	if n <= 0 {
		n = BackupCodeCount
	}
	max := big.NewInt(int64(len(BackupCodeAlphabet)))
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		var b strings.Builder
		for i := 0; i < BackupCodeLength; i++ {
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, fmt.Errorf("generate backup code: %w", err)
			}
			b.WriteByte(BackupCodeAlphabet[idx.Int64()])
		}
		code := b.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// CanonicalBackupCode upper-cases and drops separators users tend to type.
func CanonicalBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// HashBackupCode binds the code to its owner so equal codes of different
// users hash differently.
func HashBackupCode(userID, code string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(CanonicalBackupCode(code)))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateBackupCode returns the unused code matching submitted, or nil.
// The caller is responsible for marking it used.
func ValidateBackupCode(userID string, codes []BackupCode, submitted string) *BackupCode {
	if CanonicalBackupCode(submitted) == "" {
		return nil
	}
	want := []byte(HashBackupCode(userID, submitted))
	var found *BackupCode
	for i := range codes {
		if subtle.ConstantTimeCompare([]byte(codes[i].CodeHash), want) == 1 && !codes[i].Used && found == nil {
			found = &codes[i]
		}
	}
	return found
}

// Summary counts a user's codes.
type Summary struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Summarize computes usage counts.
func Summarize(codes []BackupCode) Summary {
	s := Summary{Total: len(codes)}
	for _, c := range codes {
		if c.Used {
			s.Used++
		}
	}
	s.Remaining = s.Total - s.Used
	return s
}
