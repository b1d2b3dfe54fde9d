// Package handoff provides single-read TTL storage for OAuth flow state
// and token handoff payloads. Every entry is consumed at most once: the
// first Take removes it, later Takes and expired entries report ErrNotFound.
package handoff

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key is absent, expired, or already consumed
var ErrNotFound = errors.New("handoff: entry not found")

// Store is a TTL key-value store with destructive reads
type Store interface {
	// Put stores a value under key for at most ttl
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take atomically reads and deletes the value under key
	Take(ctx context.Context, key string) ([]byte, error)

	// Close releases store resources
	Close() error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. A background janitor evicts
// expired entries so abandoned flows do not accumulate.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store with a janitor sweeping at
// the given interval. A non-positive interval disables the janitor;
// expired entries are then only dropped lazily on Take.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if sweepInterval > 0 {
		go s.janitor(sweepInterval)
	}
	return s
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		value:     cp,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Take implements Store. The delete happens under the same lock as the
// read, so concurrent Takes for one key yield the value to exactly one
// caller.
func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)

	if !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Close stops the janitor
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
