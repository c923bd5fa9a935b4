package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vruksh/agroqa/internal/backup"
	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/internal/storage/sqlite"
	"github.com/vruksh/agroqa/pkg/types"
)

// seedCorpus creates a corpus database with one saved artifact and
// returns the data directory.
func seedCorpus(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	store, err := sqlite.Open(dataDir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.SaveArtifact(context.Background(), &storage.CorpusArtifact{
		Model:     "nomic-embed-text",
		Dimension: 2,
		Chunks: []types.Chunk{
			{ID: "doc#0", DocumentID: "doc", Text: "Wheat sowing window.", Embedding: []float32{1, 0}},
		},
	}))
	return dataDir
}

func TestSnapshotAndRestore(t *testing.T) {
	dataDir := seedCorpus(t)
	dbPath := filepath.Join(dataDir, "corpus.db")
	snapDir := filepath.Join(dataDir, "snapshots")

	info, err := backup.Snapshot(dbPath, snapDir)
	require.NoError(t, err)
	assert.Greater(t, info.Size, int64(0))
	require.NoError(t, backup.Verify(info.Path))

	// Corrupt the live database, then restore the snapshot over it.
	require.NoError(t, os.WriteFile(dbPath, []byte("garbage"), 0o644))
	require.NoError(t, backup.Restore(info.Path, dbPath))

	store, err := sqlite.Open(dataDir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	artifact, err := store.LoadArtifact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", artifact.Model)
	require.Len(t, artifact.Chunks, 1)
}

func TestSnapshotMissingDatabase(t *testing.T) {
	_, err := backup.Snapshot(filepath.Join(t.TempDir(), "absent.db"), t.TempDir())
	assert.Error(t, err)
}

func TestVerifyRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))
	assert.Error(t, backup.Verify(path))
}

func TestListNewestFirstAndPrune(t *testing.T) {
	dataDir := seedCorpus(t)
	dbPath := filepath.Join(dataDir, "corpus.db")
	snapDir := filepath.Join(dataDir, "snapshots")

	var paths []string
	for i := 0; i < 3; i++ {
		info, err := backup.Snapshot(dbPath, snapDir)
		require.NoError(t, err)
		paths = append(paths, info.Path)
		// Spread mod times so ordering is deterministic.
		ts := time.Now().Add(time.Duration(i-3) * time.Minute)
		require.NoError(t, os.Chtimes(info.Path, ts, ts))
	}

	snapshots, err := backup.List(snapDir)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.True(t, snapshots[0].CreatedAt.After(snapshots[2].CreatedAt))

	require.NoError(t, backup.Prune(snapDir, 1))
	remaining, err := backup.List(snapDir)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, paths[2], remaining[0].Path)
}

func TestListMissingDirectory(t *testing.T) {
	snapshots, err := backup.List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
