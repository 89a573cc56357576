package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps entries in a process-local map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	grace   time.Duration
}

// NewMemoryStore returns an empty store. grace <= 0 selects DefaultGrace.
func NewMemoryStore(grace time.Duration) *MemoryStore {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &MemoryStore{
		entries: make(map[string]Entry),
		grace:   grace,
	}
}

// Revoke records entry unless its TokenID is already present.
func (s *MemoryStore) Revoke(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	if _, ok := s.entries[entry.TokenID]; !ok {
		s.entries[entry.TokenID] = entry
	}
	s.mu.Unlock()
	return nil
}

// IsRevoked reports whether tokenID has been recorded.
func (s *MemoryStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.RLock()
	_, ok := s.entries[tokenID]
	s.mu.RUnlock()
	return ok, nil
}

// Get returns the stored entry for tokenID.
func (s *MemoryStore) Get(tokenID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[tokenID]
	return e, ok
}

// Len returns the number of entries held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Prune drops entries whose retention ended before now.
func (s *MemoryStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, e := range s.entries {
		until, ok := e.retainUntil(s.grace)
		if ok && until.Before(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
