package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/naggery/naggery/internal/secerr"
)

type memoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Request // by token
}

// NewMemoryRepository builds an in-memory request store for tests and dev.
func NewMemoryRepository() Repository {
	return &memoryRepository{requests: make(map[string]Request)}
}

func (r *memoryRepository) Create(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.Token]; exists {
		return errors.New("verification token exists")
	}
	r.requests[req.Token] = req
	return nil
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[token]
	if !ok {
		return Request{}, secerr.ErrNotFound
	}
	return req, nil
}

func (r *memoryRepository) ConsumeAttempt(_ context.Context, token string, now time.Time, max int) (Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[token]
	if !ok || req.Verified || !now.Before(req.Expires) || req.Attempts >= max {
		return Request{}, false, nil
	}
	req.Attempts++
	r.requests[token] = req
	return req, true, nil
}

func (r *memoryRepository) MarkVerified(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, req := range r.requests {
		if req.ID != id {
			continue
		}
		if req.Verified {
			return false, nil
		}
		req.Verified = true
		r.requests[token] = req
		return true, nil
	}
	return false, nil
}

func (r *memoryRepository) DeleteExpiredForUser(_ context.Context, userID string, typ Type, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, req := range r.requests {
		if req.UserID == userID && req.Type == typ && req.Expires.Before(now) {
			delete(r.requests, token)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, req := range r.requests {
		if req.Expires.Before(now) {
			delete(r.requests, token)
			n++
		}
	}
	return n, nil
}
