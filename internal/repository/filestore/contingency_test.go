package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccessKey = "35260112345678000190650010000000421123456787"

func testRepo(t *testing.T) *ContingencyRepository {
	t.Helper()
	log, err := logger.NewLogger(config.GetDefaultConfig())
	require.NoError(t, err)

	repo, err := NewContingencyRepository(t.TempDir(), log)
	require.NoError(t, err)
	return repo
}

func testRecord(key string) *contingency.Record {
	return &contingency.Record{
		AccessKey: key,
		SignedXML: `<NFe><infNFe Id="NFe` + key + `"></infNFe></NFe>`,
		Status:    types.ContingencyStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRecord(testAccessKey)))

	got, err := repo.Get(ctx, testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, testAccessKey, got.AccessKey)
	assert.Equal(t, types.ContingencyStatusPending, got.Status)
}

func TestGetUnknownKeyIsNotFound(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.Get(context.Background(), testAccessKey)
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	repo := testRepo(t)

	err := repo.Save(context.Background(), &contingency.Record{AccessKey: "short"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestListPendingOrdersByCreation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	older := testRecord("35260112345678000190650010000000011123456781")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testRecord("35260112345678000190650010000000021123456782")

	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, older))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.AccessKey, pending[0].AccessKey)
	assert.Equal(t, newer.AccessKey, pending[1].AccessKey)
}

func TestListPendingSkipsCorruptFiles(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRecord(testAccessKey)))
	require.NoError(t, os.WriteFile(filepath.Join(repo.dir, "garbage.json"), []byte("{not json"), 0o644))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMarkTransmittedKeepsRecord(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRecord(testAccessKey)))
	require.NoError(t, repo.MarkTransmitted(ctx, testAccessKey, "135260000000099"))

	got, err := repo.Get(ctx, testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, types.ContingencyStatusTransmitted, got.Status)
	assert.Equal(t, "135260000000099", got.Protocol)
	require.NotNil(t, got.TransmittedAt)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkTransmittedIsIdempotent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRecord(testAccessKey)))
	require.NoError(t, repo.MarkTransmitted(ctx, testAccessKey, "135260000000099"))

	// Second call and unknown key are both no-ops
	require.NoError(t, repo.MarkTransmitted(ctx, testAccessKey, "different"))
	require.NoError(t, repo.MarkTransmitted(ctx, "35999912345678000190650010000009999123456789", "p"))

	got, err := repo.Get(ctx, testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, "135260000000099", got.Protocol)
}

func TestSaveOverwritesExistingKey(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first := testRecord(testAccessKey)
	require.NoError(t, repo.Save(ctx, first))

	second := testRecord(testAccessKey)
	second.SignedXML = `<NFe><infNFe Id="NFe2"></infNFe></NFe>`
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, second.SignedXML, got.SignedXML)
}
