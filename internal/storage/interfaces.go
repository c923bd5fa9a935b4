// Package storage defines persistence for the knowledge corpus
// artifact: the chunks, their embeddings, and the embedding-model
// metadata that ties them to one embedding space. The artifact is
// versioned as a whole — it is written atomically at index build time
// and replaced wholesale on rebuild, never edited in place.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vruksh/agroqa/pkg/types"
)

// Storage error sentinels. Match with errors.Is.
var (
	// ErrNotFound indicates no corpus artifact has been persisted yet.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelMismatch indicates the persisted artifact was built with a
	// different embedding model or dimensionality than the one now
	// configured. The artifact must be rebuilt, not queried.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrNoVectorIndex indicates the backend cannot rank server-side
	// (e.g. pgvector is not installed); callers should search their
	// in-memory index instead.
	ErrNoVectorIndex = errors.New("no vector index")
)

// CorpusArtifact is the persisted corpus: every chunk with its
// embedding, plus the embedding-space metadata the retrieval engine
// verifies at load time.
type CorpusArtifact struct {
	// Model is the embedding model the chunk vectors came from
	Model string

	// Dimension is the embedding vector length
	Dimension int

	// BuiltAt is when the artifact was built
	BuiltAt time.Time

	// Chunks holds every corpus chunk with its embedding
	Chunks []types.Chunk
}

// CorpusStore persists and reloads the corpus artifact.
type CorpusStore interface {
	// SaveArtifact atomically replaces the persisted artifact.
	SaveArtifact(ctx context.Context, artifact *CorpusArtifact) error

	// LoadArtifact returns the persisted artifact, or ErrNotFound when
	// none has been saved.
	LoadArtifact(ctx context.Context) (*CorpusArtifact, error)

	// Close releases the store's resources.
	Close() error
}

// VectorSearcher is an optional store capability: backends that can
// rank by similarity server-side (pgvector) implement it so large
// corpora need not be held in memory to be searched.
type VectorSearcher interface {
	// SearchSimilar returns up to topK chunks by descending cosine
	// similarity to the query vector, excluding scores below floor.
	SearchSimilar(ctx context.Context, query []float32, topK int, floor float64) ([]types.ScoredChunk, error)
}
