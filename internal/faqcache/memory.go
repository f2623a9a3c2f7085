package faqcache

import (
	"context"
	"sync"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

type memoryKey struct {
	orgID       uuid.UUID
	fingerprint string
}

// MemoryStore keeps entries in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[memoryKey]domain.CacheEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[memoryKey]domain.CacheEntry),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, orgID uuid.UUID, fingerprint string) (*domain.CacheEntry, error) {
	key := memoryKey{orgID, fingerprint}

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if e.Expired(s.now()) {
		s.mu.Lock()
		// Re-check: a writer may have refreshed the entry meanwhile.
		if cur, ok := s.data[key]; ok && cur.Expired(s.now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return &e, nil
}

func (s *MemoryStore) Set(ctx context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[memoryKey{entry.OrgID, entry.Fingerprint}] = *entry
	return nil
}

// Purge removes expired entries and returns how many were dropped.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, e := range s.data {
		if e.Expired(now) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
