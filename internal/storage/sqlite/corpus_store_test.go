package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/internal/storage/sqlite"
	"github.com/vruksh/agroqa/pkg/types"
)

func openStore(t *testing.T) *sqlite.CorpusStore {
	t.Helper()
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleArtifact() *storage.CorpusArtifact {
	return &storage.CorpusArtifact{
		Model:     "nomic-embed-text",
		Dimension: 4,
		BuiltAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Chunks: []types.Chunk{
			{
				ID:         "doc1-0",
				DocumentID: "doc1",
				Position:   0,
				Text:       "Wheat sowing begins after the first winter rain.",
				Embedding:  []float32{0.1, 0.2, 0.3, 0.4},
			},
			{
				ID:              "doc1-1",
				DocumentID:      "doc1",
				Position:        1,
				Text:            "Irrigate wheat at crown root initiation.",
				Embedding:       []float32{-0.5, 0.25, 0, 1},
				DocumentModTime: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestLoadArtifactEmptyStore(t *testing.T) {
	store := openStore(t)

	_, err := store.LoadArtifact(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveAndLoadArtifactRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	artifact := sampleArtifact()

	require.NoError(t, store.SaveArtifact(ctx, artifact))

	loaded, err := store.LoadArtifact(ctx)
	require.NoError(t, err)

	assert.Equal(t, artifact.Model, loaded.Model)
	assert.Equal(t, artifact.Dimension, loaded.Dimension)
	require.Len(t, loaded.Chunks, 2)
	assert.Equal(t, artifact.Chunks[0].Text, loaded.Chunks[0].Text)
	assert.Equal(t, artifact.Chunks[0].Embedding, loaded.Chunks[0].Embedding)
	assert.Equal(t, artifact.Chunks[1].Embedding, loaded.Chunks[1].Embedding)
	assert.True(t, artifact.Chunks[1].DocumentModTime.Equal(loaded.Chunks[1].DocumentModTime))
}

func TestSaveArtifactReplacesWholesale(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveArtifact(ctx, sampleArtifact()))

	replacement := &storage.CorpusArtifact{
		Model:     "text-embedding-3-small",
		Dimension: 2,
		Chunks: []types.Chunk{
			{ID: "doc2-0", DocumentID: "doc2", Text: "Paddy transplanting window.", Embedding: []float32{1, 0}},
		},
	}
	require.NoError(t, store.SaveArtifact(ctx, replacement))

	loaded, err := store.LoadArtifact(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", loaded.Model)
	require.Len(t, loaded.Chunks, 1, "old chunks must be gone after replacement")
	assert.Equal(t, "doc2-0", loaded.Chunks[0].ID)
}

func TestSaveArtifactValidation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	err := store.SaveArtifact(ctx, &storage.CorpusArtifact{Model: "", Dimension: 4})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.SaveArtifact(ctx, &storage.CorpusArtifact{
		Model:     "m",
		Dimension: 4,
		Chunks:    []types.Chunk{{ID: "c", DocumentID: "d", Text: "t", Embedding: []float32{1, 2}}},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput, "embedding length must match the declared dimension")
}
