package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process journal store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) SaveEntry(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.EntryType == "" {
		entry.EntryType = "text"
	}
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return entry, nil
}

func (s *InMemoryStore) RecentEntries(_ context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.entries[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	// Newest first.
	out := make([]Entry, 0, limit)
	for i := len(arr) - 1; i >= len(arr)-limit; i-- {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
