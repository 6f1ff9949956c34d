// Package apikeys stores users' AI provider keys encrypted at rest.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/validation"
	"github.com/naggery/naggery/internal/vault"
)

// Service validates, seals and stores provider keys.
type Service struct {
	repo     Repository
	cipher   *vault.Cipher
	validate *validation.Validator
	now      func() time.Time
	logger   *slog.Logger
}

// NewService wires the key store. now and logger may be nil.
func NewService(repo Repository, cipher *vault.Cipher, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cipher: cipher, validate: validation.New(), now: now, logger: logger}
}

// List returns the user's keys newest first, without plaintext.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	keys, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.view())
	}
	return out, nil
}

// Create validates and stores a key. A second key for the same provider is a conflict.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (View, error) {
	if err := s.validate.Struct(in); err != nil {
		return View{}, err
	}
	provider, ok := vault.ParseProvider(in.Provider)
	if !ok {
		return View{}, secerr.Validation("provider", "unsupported API provider")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return View{}, secerr.Validation("keyName", "key name is required")
	}
	plain := strings.TrimSpace(in.APIKey)
	if err := vault.ValidateAPIKeyFormat(plain, provider); err != nil {
		return View{}, err
	}
	if _, err := s.repo.GetByProvider(ctx, userID, provider); err == nil {
		return View{}, fmt.Errorf("%w: an API key for %s already exists", secerr.ErrConflict, provider)
	} else if !errors.Is(err, secerr.ErrNotFound) {
		return View{}, err
	}

	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return View{}, err
	}
	now := s.now().UTC()
	k := Key{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   provider,
		Name:       name,
		Ciphertext: sealed,
		Hint:       vault.MaskAPIKey(plain),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, k); err != nil {
		return View{}, err
	}
	s.logger.Info("api key stored", slog.String("user_id", userID), slog.String("provider", string(provider)))
	return k.view(), nil
}

// Update renames, toggles or replaces a key owned by userID.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (View, error) {
	if err := s.validate.Struct(in); err != nil {
		return View{}, err
	}
	k, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return View{}, secerr.Validation("keyName", "key name is required")
		}
		k.Name = name
	}
	if in.IsActive != nil {
		k.IsActive = *in.IsActive
	}
	if in.APIKey != nil {
		plain := strings.TrimSpace(*in.APIKey)
		if err := vault.ValidateAPIKeyFormat(plain, k.Provider); err != nil {
			return View{}, err
		}
		sealed, err := s.cipher.Encrypt(plain)
		if err != nil {
			return View{}, err
		}
		k.Ciphertext = sealed
		k.Hint = vault.MaskAPIKey(plain)
	}
	k.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, k); err != nil {
		return View{}, err
	}
	return k.view(), nil
}

// Delete removes a key owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Reveal decrypts the active key for provider and stamps its last use.
func (s *Service) Reveal(ctx context.Context, userID string, provider vault.Provider) (string, error) {
	k, err := s.repo.GetByProvider(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if !k.IsActive {
		return "", fmt.Errorf("%w: key is disabled", secerr.ErrNotFound)
	}
	plain, err := s.cipher.Decrypt(k.Ciphertext)
	if err != nil {
		s.logger.Error("api key decrypt failed", slog.String("key_id", k.ID))
		return "", err
	}
	if err := s.repo.Touch(ctx, k.ID, s.now()); err != nil {
		s.logger.Warn("api key touch failed", slog.String("key_id", k.ID), slog.String("error", err.Error()))
	}
	return plain, nil
}
