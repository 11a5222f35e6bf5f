package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/giropos/fiscal/internal/domain/sequence"
	ierr "github.com/giropos/fiscal/internal/errors"
)

// SequenceCounter is the durable document number source. The mutex
// serializes the read-increment; the counter file is committed before
// Next returns, so a crash never re-issues a handed-out number.
type SequenceCounter struct {
	path string
	mu   sync.Mutex
}

// NewSequenceCounter stores all scopes in one JSON file under dir
func NewSequenceCounter(dir string) (*SequenceCounter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not create counter directory %s", dir).
			Mark(ierr.ErrPersistence)
	}
	return &SequenceCounter{path: filepath.Join(dir, "sequence.json")}, nil
}

// Next consumes and returns the next number for the scope
func (c *SequenceCounter) Next(ctx context.Context, scope sequence.Scope) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters, err := c.load()
	if err != nil {
		return 0, err
	}

	next := counters[scope.Key()] + 1
	counters[scope.Key()] = next

	if err := c.store(counters); err != nil {
		return 0, err
	}
	return next, nil
}

// Current returns the next number without consuming it
func (c *SequenceCounter) Current(ctx context.Context, scope sequence.Scope) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters, err := c.load()
	if err != nil {
		return 0, err
	}
	return counters[scope.Key()] + 1, nil
}

func (c *SequenceCounter) load() (map[string]uint64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]uint64{}, nil
		}
		return nil, ierr.WithError(err).
			WithHint("Counter file could not be read").
			Mark(ierr.ErrPersistence)
	}

	counters := map[string]uint64{}
	if err := json.Unmarshal(data, &counters); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Counter file is corrupt").
			Mark(ierr.ErrPersistence)
	}
	return counters, nil
}

func (c *SequenceCounter) store(counters map[string]uint64) error {
	data, err := json.MarshalIndent(counters, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Counter state could not be serialized").
			Mark(ierr.ErrPersistence)
	}
	if err := atomicWrite(c.path, data); err != nil {
		return ierr.WithError(err).
			WithHint("Counter state could not be written").
			Mark(ierr.ErrPersistence)
	}
	return nil
}
