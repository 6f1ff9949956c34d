package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/naggery/naggery/internal/secerr"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // by id
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return secerr.ErrConflict
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) || (user.Phone != "" && u.Phone == user.Phone) {
			return secerr.ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, secerr.ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, secerr.ErrNotFound
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return User{}, secerr.ErrNotFound
}

func (r *memoryRepository) RecordFailedLogin(_ context.Context, id string, threshold int, lockUntil time.Time) (User, error) {
	var out User
	err := r.update(id, func(u *User) error {
		u.LoginAttempts++
		if u.LoginAttempts >= threshold {
			t := lockUntil.UTC()
			u.LockedUntil = &t
		}
		out = *u
		return nil
	})
	return out, err
}

func (r *memoryRepository) ResetLoginAttempts(_ context.Context, id string) error {
	return r.update(id, func(u *User) error {
		u.LoginAttempts = 0
		u.LockedUntil = nil
		return nil
	})
}

func (r *memoryRepository) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *User) error {
		t := at.UTC()
		u.EmailVerifiedAt = &t
		u.IsActive = true
		return nil
	})
}

func (r *memoryRepository) MarkPhoneVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *User) error {
		t := at.UTC()
		u.PhoneVerifiedAt = &t
		return nil
	})
}

func (r *memoryRepository) SetTwoFactor(_ context.Context, id, encryptedSecret string, enabled bool) error {
	return r.update(id, func(u *User) error {
		u.TwoFASecret = encryptedSecret
		u.TwoFAEnabled = enabled
		return nil
	})
}

func (r *memoryRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (r *memoryRepository) UpdateProfile(_ context.Context, id string, upd ProfileUpdate) (User, error) {
	var out User
	err := r.update(id, func(u *User) error {
		if upd.Phone != nil && *upd.Phone != u.Phone {
			for otherID, other := range r.users {
				if otherID != id && other.Phone == *upd.Phone {
					return secerr.ErrConflict
				}
			}
			u.Phone = *upd.Phone
			u.PhoneVerifiedAt = nil
		}
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		out = *u
		return nil
	})
	return out, err
}

// update applies fn under the write lock.
func (r *memoryRepository) update(id string, fn func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return secerr.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}
