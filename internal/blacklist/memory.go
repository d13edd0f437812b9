package blacklist

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps blocked addresses for the process lifetime.
type InMemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{namespaces: make(map[string][]Entry)}
}

func (s *InMemoryStore) Add(_ context.Context, namespace, address, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.namespaces[namespace] {
		if e.Address == address {
			return nil // first reason wins
		}
	}
	s.namespaces[namespace] = append(s.namespaces[namespace], Entry{
		Address: address,
		Reason:  reason,
		AddedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, namespace, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.namespaces[namespace]
	for i, e := range entries {
		if e.Address == address {
			s.namespaces[namespace] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) List(_ context.Context, namespace string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.namespaces[namespace]...), nil
}
