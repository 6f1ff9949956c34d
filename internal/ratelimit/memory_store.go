package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 1024

type counter struct {
	count int64
	reset time.Time
}

// MemoryStore keeps counters in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	ops      int
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]counter)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops++
	if s.ops%pruneEvery == 0 {
		for k, c := range s.counters {
			if now.After(c.reset) {
				delete(s.counters, k)
			}
		}
	}

	c, ok := s.counters[key]
	if !ok || now.After(c.reset) {
		c = counter{count: 0, reset: now.Add(window)}
	}
	c.count++
	s.counters[key] = c
	return c.count, c.reset, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// Len reports the number of live counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
