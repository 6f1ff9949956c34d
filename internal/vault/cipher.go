package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/naggery/naggery/internal/secerr"
)

const keyInfo = "naggery/vault/aes-256-gcm/v1"

// Cipher seals short secrets with AES-256-GCM under a key derived from a
// configured passphrase. Output is base64(nonce || ciphertext || tag).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from passphrase with HKDF-SHA256.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: encryption key is not configured", secerr.ErrEncryption)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", secerr.ErrEncryption, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secerr.ErrEncryption, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secerr.ErrEncryption, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", secerr.ErrEncryption, err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Tampered, truncated or
// foreign-key input fails with ErrDecryption.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", secerr.ErrDecryption)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", secerr.ErrDecryption)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", secerr.ErrDecryption)
	}
	return string(plain), nil
}

// Encrypt is a one-shot helper around NewCipher(key).Encrypt.
func Encrypt(plaintext, key string) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// Decrypt is a one-shot helper around NewCipher(key).Decrypt.
func Decrypt(ciphertext, key string) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: encryption key is not configured", secerr.ErrDecryption)
	}
	return c.Decrypt(ciphertext)
}
