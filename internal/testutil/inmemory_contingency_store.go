package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
)

// InMemoryContingencyStore implements contingency.Repository
type InMemoryContingencyStore struct {
	mu      sync.RWMutex
	records map[string]*contingency.Record

	// SaveErr, when set, fails the next Save call
	SaveErr error
}

// NewInMemoryContingencyStore creates a new in-memory contingency repository
func NewInMemoryContingencyStore() *InMemoryContingencyStore {
	return &InMemoryContingencyStore{
		records: make(map[string]*contingency.Record),
	}
}

// Clear resets all stored data
func (m *InMemoryContingencyStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*contingency.Record)
	m.SaveErr = nil
}

func (m *InMemoryContingencyStore) Save(ctx context.Context, record *contingency.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		err := m.SaveErr
		m.SaveErr = nil
		return err
	}

	clone := *record
	m.records[record.AccessKey] = &clone
	return nil
}

func (m *InMemoryContingencyStore) Get(ctx context.Context, accessKey string) (*contingency.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[accessKey]
	if !ok {
		return nil, ierr.NewError("contingency record not found").
			WithHintf("No record stored for access key %s", accessKey).
			Mark(ierr.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

func (m *InMemoryContingencyStore) ListPending(ctx context.Context) ([]*contingency.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*contingency.Record
	for _, record := range m.records {
		if record.Status == types.ContingencyStatusPending {
			clone := *record
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (m *InMemoryContingencyStore) MarkTransmitted(ctx context.Context, accessKey string, protocol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[accessKey]
	if !ok || record.Status == types.ContingencyStatusTransmitted {
		return nil
	}

	now := time.Now().UTC()
	record.Status = types.ContingencyStatusTransmitted
	record.TransmittedAt = &now
	record.Protocol = protocol
	return nil
}
