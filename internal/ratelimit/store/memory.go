package store

import (
	"context"
	"sync"
	"time"
)

// defaultSweepInterval is how often the background sweep evicts expired
// entries.
const defaultSweepInterval = time.Minute

// memoryEntry is a stored attempt with its expiration.
type memoryEntry struct {
	attempt   Attempt
	expiresAt time.Time
}

// MemoryStore implements Store using in-memory storage with a background
// sweep. The sweep runs on its own schedule and never blocks readers for
// longer than a map pass.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	ticker *time.Ticker
	done   chan struct{}
	closed bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithSweepInterval(defaultSweepInterval)
}

// NewMemoryStoreWithSweepInterval creates a new in-memory store with a
// custom sweep interval.
func NewMemoryStoreWithSweepInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]memoryEntry),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (Attempt, bool, error) {
	select {
	case <-ctx.Done():
		return Attempt{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return Attempt{}, false, nil
	}
	return entry.attempt, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, attempt Attempt, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	s.data[key] = memoryEntry{
		attempt:   attempt,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.ticker.Stop()
	close(s.done)
	return nil
}

// sweepLoop evicts expired entries until Close is called.
func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.sweep()
		}
	}
}

// sweep removes every expired entry.
func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	for key, entry := range s.data {
		if now.After(entry.expiresAt) {
			delete(s.data, key)
		}
	}
	s.mu.Unlock()
}

// Len returns the number of live entries. It is used by tests and the
// store's own diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
