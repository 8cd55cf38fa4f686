package kv

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation for testing.
// The clock is injectable so tests can advance time past TTLs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store using the real clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Test use only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the entry at key if it exists and has not expired.
// Caller must hold s.mu.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// Get returns the value at key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(e.value))
	copy(copied, e.value)
	return copied, nil
}

// Put writes value at key with the given TTL.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	s.entries[key] = memoryEntry{value: copied, expiresAt: s.now().Add(ttl)}
	return nil
}

// CompareAndSwap replaces the value at key only if it still equals old.
func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, old, new []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok || !bytes.Equal(e.value, old) {
		return ErrCASMismatch
	}
	copied := make([]byte, len(new))
	copy(copied, new)
	s.entries[key] = memoryEntry{value: copied, expiresAt: s.now().Add(ttl)}
	return nil
}

// Incr atomically increments the counter at key.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if e, ok := s.live(key); ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed + 1
		s.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(n, 10)), expiresAt: e.expiresAt}
		return n, nil
	}
	n = 1
	s.entries[key] = memoryEntry{value: []byte("1"), expiresAt: s.now().Add(ttl)}
	return n, nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(context.Context) error { return nil }
