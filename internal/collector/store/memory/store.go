// Package memory keeps collector events in process memory. Contents are lost on
// restart; it backs tests and throwaway collectors.
package memory

import (
	"context"
	"sync"

	"pdftrack/internal/collector/models"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
}

func New() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of every event in append order.
func (s *InMemoryStore) List(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Event{}, s.events...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
