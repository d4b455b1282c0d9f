package handshake

import (
	"context"
	"sync"
	"time"
)

// Store owns the mapping from correlation key to transaction record plus its
// expiry. Records are destroyed after their retention window regardless of
// state; a missing record is indistinguishable from one that never existed.
//
// The in-memory implementation is only correct for a single server instance.
// Multi-instance deployments must use the Redis implementation, otherwise a
// client polling a different instance than the one that handled the callback
// never observes a terminal state.
type Store interface {
	// Put creates or replaces the record under key and (re)schedules its
	// expiry. Last write wins.
	Put(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Update replaces the record under key while keeping the expiry deadline
	// set at creation. A no-op when the key is absent or expired: the
	// retention window is fixed when the handshake begins, and a settle
	// arriving after it closed has nowhere to land.
	Update(ctx context.Context, key string, rec Record) error
	// Get returns the record for key, or (nil, nil) when absent or expired.
	Get(ctx context.Context, key string) (*Record, error)
}

// MemoryStore is the in-process Store: a map guarded by a mutex with one
// expiry timer per key.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	timers  map[string]*time.Timer
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		timers:  make(map[string]*time.Timer),
	}
}

// Put stores rec under key. Any timer scheduled by an earlier Put for the
// same key is stopped and replaced, so a recreated record is never deleted
// prematurely by a stale timer.
func (s *MemoryStore) Put(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.records[key] = rec
	s.timers[key] = time.AfterFunc(ttl, func() {
		s.expire(key)
	})
	return nil
}

// Update replaces an existing record without touching its expiry timer.
func (s *MemoryStore) Update(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return nil
	}
	s.records[key] = rec
	return nil
}

// Get returns a copy of the record, or nil when the key is unknown.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) expire(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	delete(s.timers, key)
}
