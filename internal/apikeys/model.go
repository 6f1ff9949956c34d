package apikeys

import (
	"time"

	"github.com/naggery/naggery/internal/vault"
)

// Key is a stored provider key. Ciphertext is the vault-sealed secret and
// Hint its masked form for display.
type Key struct {
	ID         string
	UserID     string
	Provider   vault.Provider
	Name       string
	Ciphertext string
	Hint       string
	IsActive   bool
	LastUsed   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// View is the client-safe projection of a Key.
type View struct {
	ID        string         `json:"id"`
	Provider  vault.Provider `json:"provider"`
	Name      string         `json:"keyName"`
	Masked    string         `json:"maskedKey"`
	IsActive  bool           `json:"isActive"`
	LastUsed  *time.Time     `json:"lastUsed,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (k Key) view() View {
	return View{
		ID:        k.ID,
		Provider:  k.Provider,
		Name:      k.Name,
		Masked:    k.Hint,
		IsActive:  k.IsActive,
		LastUsed:  k.LastUsed,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}

// CreateInput is the request to store a new key.
type CreateInput struct {
	Provider string `json:"provider" validate:"required"`
	Name     string `json:"keyName" validate:"required,max=100"`
	APIKey   string `json:"apiKey" validate:"required"`
}

// UpdateInput changes an existing key. Nil fields are left alone.
type UpdateInput struct {
	Name     *string `json:"keyName" validate:"omitempty,max=100"`
	IsActive *bool   `json:"isActive"`
	APIKey   *string `json:"apiKey"`
}
