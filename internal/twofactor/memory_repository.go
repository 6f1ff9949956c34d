package twofactor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryBackupCodeRepository struct {
	mu    sync.RWMutex
	codes map[string][]BackupCode
}

// NewMemoryBackupCodeRepository builds an in-memory store for tests and dev.
func NewMemoryBackupCodeRepository() BackupCodeRepository {
	return &memoryBackupCodeRepository{codes: make(map[string][]BackupCode)}
}

func (r *memoryBackupCodeRepository) ReplaceAll(_ context.Context, userID string, hashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	list := make([]BackupCode, 0, len(hashes))
	for _, h := range hashes {
		list = append(list, BackupCode{ID: uuid.NewString(), UserID: userID, CodeHash: h, CreatedAt: now})
	}
	r.codes[userID] = list
	return nil
}

func (r *memoryBackupCodeRepository) ListByUser(_ context.Context, userID string) ([]BackupCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.codes[userID]
	out := make([]BackupCode, len(src))
	copy(out, src)
	return out, nil
}

func (r *memoryBackupCodeRepository) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, list := range r.codes {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			if list[i].Used {
				return false, nil
			}
			t := at.UTC()
			list[i].Used = true
			list[i].UsedAt = &t
			r.codes[uid] = list
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryBackupCodeRepository) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, userID)
	return nil
}
