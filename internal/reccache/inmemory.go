package reccache

import (
	"context"
	"sync"
)

// InMemoryStore is the in-process slot for local/dev use and tests. It is
// durable only for the process lifetime.
type InMemoryStore struct {
	mu    sync.RWMutex
	entry *Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Write(_ context.Context, entry Entry) error {
	s.mu.Lock()
	cp := entry
	cp.Recommendations = append(cp.Recommendations[:0:0], entry.Recommendations...)
	s.entry = &cp
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Read(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return nil, nil
	}
	cp := *s.entry
	cp.Recommendations = append(cp.Recommendations[:0:0], s.entry.Recommendations...)
	return &cp, nil
}

func (s *InMemoryStore) Close() error { return nil }
