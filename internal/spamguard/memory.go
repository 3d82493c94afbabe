package spamguard

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Used by tests and the
// memory backend; records are never evicted except by the gate itself.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]RateWindow
	bans    map[string]Ban
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]RateWindow),
		bans:    make(map[string]Ban),
	}
}

// GetWindow implements Store.
func (s *MemoryStore) GetWindow(_ context.Context, clientID string) (*RateWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[clientID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// PutWindow implements Store.
func (s *MemoryStore) PutWindow(_ context.Context, clientID string, w RateWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[clientID] = w
	return nil
}

// IncrementWindow implements Store. A missing window is created with count 1
// and a zero start, which the gate treats as expired.
func (s *MemoryStore) IncrementWindow(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[clientID]
	w.Count++
	s.windows[clientID] = w
	return nil
}

// GetBan implements Store.
func (s *MemoryStore) GetBan(_ context.Context, clientID string) (*Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bans[clientID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// PutBan implements Store.
func (s *MemoryStore) PutBan(_ context.Context, clientID string, b Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[clientID] = b
	return nil
}

// DeleteBan implements Store.
func (s *MemoryStore) DeleteBan(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, clientID)
	return nil
}
