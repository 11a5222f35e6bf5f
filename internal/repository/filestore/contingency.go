// Package filestore holds the disk-backed repositories: the
// contingency queue and the document number counter. Both write through
// a temp-file rename so a crash mid-write never corrupts a committed
// entry.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/types"
)

// ContingencyRepository persists one JSON file per access key
type ContingencyRepository struct {
	dir    string
	logger *logger.Logger
	mu     sync.Mutex
}

// NewContingencyRepository creates the storage directory if missing
func NewContingencyRepository(dir string, log *logger.Logger) (*ContingencyRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not create contingency directory %s", dir).
			Mark(ierr.ErrPersistence)
	}
	return &ContingencyRepository{dir: dir, logger: log}, nil
}

// Save durably writes the record. The file is fsynced before the
// rename so the caller can treat the sale as emitted once Save returns.
func (r *ContingencyRepository) Save(ctx context.Context, record *contingency.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(record)
}

// Get returns the record for an access key
func (r *ContingencyRepository) Get(ctx context.Context, accessKey string) (*contingency.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.read(r.path(accessKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierr.NewError("contingency record not found").
				WithHintf("No record stored for access key %s", accessKey).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Contingency record could not be read").
			Mark(ierr.ErrPersistence)
	}
	return record, nil
}

// ListPending returns all records still awaiting transmission, oldest
// first. A corrupt file is skipped and logged, never fatal: one bad
// entry must not hide the rest of the queue.
func (r *ContingencyRepository) ListPending(ctx context.Context) ([]*contingency.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not list contingency directory %s", r.dir).
			Mark(ierr.ErrPersistence)
	}

	var pending []*contingency.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := r.read(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			r.logger.Warnw("skipping unreadable contingency record",
				"file", entry.Name(),
				"error", err,
			)
			continue
		}
		if record.Status == types.ContingencyStatusPending {
			pending = append(pending, record)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// MarkTransmitted flips a record to transmitted and stores the late
// authorization protocol. The record stays on disk as the audit trail.
// Unknown or already-transmitted keys are a no-op.
func (r *ContingencyRepository) MarkTransmitted(ctx context.Context, accessKey string, protocol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.read(r.path(accessKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ierr.WithError(err).
			WithHint("Contingency record could not be read").
			Mark(ierr.ErrPersistence)
	}
	if record.Status == types.ContingencyStatusTransmitted {
		return nil
	}

	now := time.Now().UTC()
	record.Status = types.ContingencyStatusTransmitted
	record.TransmittedAt = &now
	record.Protocol = protocol

	return r.write(record)
}

func (r *ContingencyRepository) path(accessKey string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s.json", accessKey))
}

func (r *ContingencyRepository) read(path string) (*contingency.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record contingency.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ContingencyRepository) write(record *contingency.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Contingency record could not be serialized").
			Mark(ierr.ErrPersistence)
	}
	if err := atomicWrite(r.path(record.AccessKey), data); err != nil {
		return ierr.WithError(err).
			WithHint("Contingency record could not be written").
			Mark(ierr.ErrPersistence)
	}
	return nil
}

// atomicWrite lands data at path through a same-directory temp file,
// fsyncing before the rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
