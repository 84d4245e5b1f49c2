package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/politodown/internal/storage"
	"github.com/italolelis/politodown/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *FileRepository {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return NewFileRepository(db)
}

func TestInitDB_IsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestFileRepository_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	records := []storage.FileRecord{
		{RunID: "run-1", FileID: "f-a", Kind: "file", Path: "/data/Materiali/Assignment-A/a.pdf", Size: 100, Status: storage.StatusDownloaded},
		{RunID: "run-1", FileID: "f-b", Kind: "file", Path: "/data/Materiali/Assignment-A/b.pdf", Status: storage.StatusNotFound},
		{RunID: "run-2", FileID: "f-a", Kind: "file", Path: "/data/Materiali/Assignment-A/a.pdf", Status: storage.StatusSkipped},
	}

	for _, rec := range records {
		require.NoError(t, repo.RecordFile(ctx, rec))
	}

	got, err := repo.GetFiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "f-a", got[0].FileID)
	assert.Equal(t, int64(100), got[0].Size)
	assert.Equal(t, storage.StatusDownloaded, got[0].Status)
	assert.True(t, fixed.Equal(got[0].RecordedAt))
	assert.Equal(t, storage.StatusNotFound, got[1].Status)

	none, err := repo.GetFiles(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInstrumentedFileRepository(t *testing.T) {
	ctx := context.Background()

	db, err := InitDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	defer db.Close()

	tel, err := telemetry.New(ctx, telemetry.Config{})
	require.NoError(t, err)

	repo := NewInstrumentedFileRepository(db, tel)

	require.NoError(t, repo.RecordFile(ctx, storage.FileRecord{RunID: "run-1", Path: "/x/a.pdf", Status: storage.StatusDownloaded}))

	files, err := repo.GetFiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, storage.StatusDownloaded, files[0].Status)
}
