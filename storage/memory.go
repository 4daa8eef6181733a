package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	deadline time.Time // zero means no expiry
}

// MemoryStore keeps handles in process memory. The default backend for a
// single-replica deployment.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is replaceable in tests
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	var deadline time.Time
	if ttl > 0 {
		deadline = s.now().Add(ttl)
	}

	// Copy so the caller's buffer stays independent of the stored handle.
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{data: stored, deadline: deadline}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.deadline.IsZero() && s.now().After(entry.deadline) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return entry.data, nil
}

func (s *MemoryStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// PurgeExpired drops every handle past its deadline.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for id, entry := range s.entries {
		if !entry.deadline.IsZero() && now.After(entry.deadline) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len reports how many handles are currently held
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
