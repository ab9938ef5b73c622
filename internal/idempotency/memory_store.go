package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	resp      *Response
	expiresAt time.Time
}

// MemoryStore is a single-process Store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

// Begin implements Store.
func (s *MemoryStore) Begin(_ context.Context, key string, ttl time.Duration) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if e, ok := s.entries[key]; ok {
		if e.resp == nil {
			return nil, ErrInFlight
		}
		copied := *e.resp
		copied.Body = append([]byte(nil), e.resp.Body...)
		return &copied, nil
	}
	s.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	return nil, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key string, resp Response, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp.Body = append([]byte(nil), resp.Body...)
	s.entries[key] = memoryEntry{resp: &resp, expiresAt: s.now().Add(ttl)}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
