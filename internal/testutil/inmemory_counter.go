package testutil

import (
	"context"
	"sync"

	"github.com/giropos/fiscal/internal/domain/sequence"
)

// InMemoryCounter implements sequence.Counter
type InMemoryCounter struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewInMemoryCounter creates a new in-memory sequence counter
func NewInMemoryCounter() *InMemoryCounter {
	return &InMemoryCounter{counters: make(map[string]uint64)}
}

// Clear resets all counters
func (m *InMemoryCounter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]uint64)
}

func (m *InMemoryCounter) Next(ctx context.Context, scope sequence.Scope) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[scope.Key()]++
	return m.counters[scope.Key()], nil
}

func (m *InMemoryCounter) Current(ctx context.Context, scope sequence.Scope) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[scope.Key()] + 1, nil
}
