package apikeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/vault"
)

type memoryRepository struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewMemoryRepository builds an in-memory key store for tests and dev.
func NewMemoryRepository() Repository {
	return &memoryRepository{keys: make(map[string]Key)}
}

func (r *memoryRepository) Create(_ context.Context, k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.keys {
		if existing.UserID == k.UserID && existing.Provider == k.Provider {
			return secerr.ErrConflict
		}
	}
	r.keys[k.ID] = k
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Key
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) Get(_ context.Context, userID, id string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok || k.UserID != userID {
		return Key{}, secerr.ErrNotFound
	}
	return k, nil
}

func (r *memoryRepository) GetByProvider(_ context.Context, userID string, p vault.Provider) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.UserID == userID && k.Provider == p {
			return k, nil
		}
	}
	return Key{}, secerr.ErrNotFound
}

func (r *memoryRepository) Update(_ context.Context, k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[k.ID]; !ok {
		return secerr.ErrNotFound
	}
	r.keys[k.ID] = k
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok || k.UserID != userID {
		return secerr.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *memoryRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return secerr.ErrNotFound
	}
	t := at.UTC()
	k.LastUsed = &t
	r.keys[id] = k
	return nil
}
