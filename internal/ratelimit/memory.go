package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Window)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e == nil {
		e = &Window{Start: now}
		s.entries[key] = e
	}
	if now.Sub(e.Start) > window {
		e.Count = 0
		e.Start = now
	}
	if e.Count >= limit {
		return *e, false, nil
	}
	e.Count++
	return *e, true, nil
}

// Sweep removes entries whose window ended more than one window ago.
func (s *MemoryStore) Sweep(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.Start) > 2*window {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
