package kvstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
)

type memoryEntry struct {
	value   string
	updated time.Time
}

// MemoryStore keeps every key in process memory.
// It is used for tests and for running without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]memoryEntry
	size     int64
	capacity int64
	clock    clockwork.Clock
}

var _ contract.PersistentStore = &MemoryStore{} // Compile-time check

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]memoryEntry),
		capacity: opts.CapacityBytes,
		clock:    opts.clock(),
	}
}

// Get implements the PersistentStore interface.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e.value, ok, nil
}

// Set implements the PersistentStore interface.
// It returns ErrQuotaExceeded when a capacity is configured and the write would exceed it.
func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newSize := s.size + entrySize(key, value)
	if old, ok := s.data[key]; ok {
		newSize -= entrySize(key, old.value)
	}
	if s.capacity > 0 && newSize > s.capacity {
		return fmt.Errorf("set %q (%d of %d bytes): %w", key, newSize, s.capacity, ErrQuotaExceeded)
	}

	s.data[key] = memoryEntry{value: value, updated: s.clock.Now()}
	s.size = newSize
	return nil
}

// Remove implements the PersistentStore interface.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.size -= entrySize(key, old.value)
		delete(s.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GetStatus implements the PersistentStore interface.
func (s *MemoryStore) GetStatus() (schema.StoreStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := schema.StoreStatus{
		Backend:       string(schema.MemoryBackend),
		Connected:     true,
		TotalKeys:     len(s.data),
		TotalBytes:    s.size,
		CapacityBytes: s.capacity,
	}
	for _, e := range s.data {
		if e.updated.After(status.LastWriteTime) {
			status.LastWriteTime = e.updated
		}
		if status.OldestWriteTime.IsZero() || e.updated.Before(status.OldestWriteTime) {
			status.OldestWriteTime = e.updated
		}
	}
	return status, nil
}

// Close implements the PersistentStore interface.
func (s *MemoryStore) Close() error { return nil }

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}
