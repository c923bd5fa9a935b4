// Package postgres persists the corpus artifact in PostgreSQL. When
// the pgvector extension is available, embeddings are additionally
// stored as vector columns so similarity search can run server-side
// for corpora too large to hold in memory.
package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS corpus_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	built_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	embedding BYTEA NOT NULL,
	document_mod_time TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, position);
`

// CorpusStore implements storage.CorpusStore (and storage.VectorSearcher
// when pgvector is installed) on PostgreSQL.
type CorpusStore struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// Open connects to PostgreSQL, applies the schema, and probes for the
// pgvector extension. pgvector being absent is not an error; the store
// simply does not offer server-side search.
func Open(dsn string) (*CorpusStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &CorpusStore{db: db}

	// Probe pgvector and add the vector column when available.
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err == nil {
		s.pgvectorAvailable = true
	} else {
		log.Printf("Warning: pgvector unavailable, server-side search disabled: %v", err)
	}

	return s, nil
}

// Close closes the database.
func (s *CorpusStore) Close() error { return s.db.Close() }

// SaveArtifact replaces the persisted corpus in one transaction.
func (s *CorpusStore) SaveArtifact(ctx context.Context, artifact *storage.CorpusArtifact) error {
	if artifact == nil || artifact.Model == "" || artifact.Dimension <= 0 {
		return fmt.Errorf("%w: artifact requires a model and positive dimension", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM corpus_meta"); err != nil {
		return fmt.Errorf("failed to clear meta: %w", err)
	}

	if s.pgvectorAvailable {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"ALTER TABLE chunks ADD COLUMN IF NOT EXISTS embedding_vec vector(%d)", artifact.Dimension)); err != nil {
			return fmt.Errorf("failed to add vector column: %w", err)
		}
	}

	for _, chunk := range artifact.Chunks {
		if len(chunk.Embedding) != artifact.Dimension {
			return fmt.Errorf("%w: chunk %s embedding length %d does not match dimension %d",
				storage.ErrInvalidInput, chunk.ID, len(chunk.Embedding), artifact.Dimension)
		}
		var modTime interface{}
		if !chunk.DocumentModTime.IsZero() {
			modTime = chunk.DocumentModTime.UTC()
		}

		if s.pgvectorAvailable {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (id, document_id, position, text, embedding, embedding_vec, document_mod_time)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, chunk.ID, chunk.DocumentID, chunk.Position, chunk.Text,
				serializeEmbedding(chunk.Embedding), pgvector.NewVector(chunk.Embedding), modTime); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (id, document_id, position, text, embedding, document_mod_time)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, chunk.ID, chunk.DocumentID, chunk.Position, chunk.Text,
				serializeEmbedding(chunk.Embedding), modTime); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
			}
		}
	}

	builtAt := artifact.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO corpus_meta (id, model, dimension, built_at) VALUES (1, $1, $2, $3)
	`, artifact.Model, artifact.Dimension, builtAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// LoadArtifact returns the persisted corpus, or storage.ErrNotFound
// when no artifact has been saved yet.
func (s *CorpusStore) LoadArtifact(ctx context.Context) (*storage.CorpusArtifact, error) {
	artifact := &storage.CorpusArtifact{}

	err := s.db.QueryRowContext(ctx,
		"SELECT model, dimension, built_at FROM corpus_meta WHERE id = 1",
	).Scan(&artifact.Model, &artifact.Dimension, &artifact.BuiltAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, text, embedding, document_mod_time
		FROM chunks
		ORDER BY document_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var chunk types.Chunk
		var blob []byte
		var modTime sql.NullTime
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
			&chunk.Text, &blob, &modTime); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Embedding, err = deserializeEmbedding(blob, artifact.Dimension)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		if modTime.Valid {
			chunk.DocumentModTime = modTime.Time
		}
		artifact.Chunks = append(artifact.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk rows error: %w", err)
	}

	return artifact, nil
}

// SearchSimilar ranks chunks by cosine similarity server-side via
// pgvector. Cosine distance d maps to similarity 1-d.
func (s *CorpusStore) SearchSimilar(ctx context.Context, query []float32, topK int, floor float64) ([]types.ScoredChunk, error) {
	if !s.pgvectorAvailable {
		return nil, fmt.Errorf("%w: pgvector extension not installed", storage.ErrNoVectorIndex)
	}
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, text, document_mod_time,
		       1 - (embedding_vec <=> $1::vector) AS similarity
		FROM chunks
		WHERE embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []types.ScoredChunk
	for rows.Next() {
		var m types.ScoredChunk
		var modTime sql.NullTime
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.Position,
			&m.Chunk.Text, &modTime, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if modTime.Valid {
			m.Chunk.DocumentModTime = modTime.Time
		}
		if m.Score < floor {
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match rows error: %w", err)
	}
	return matches, nil
}

func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("embedding size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	embedding := make([]float32, dimension)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}

// Compile-time assertions.
var (
	_ storage.CorpusStore    = (*CorpusStore)(nil)
	_ storage.VectorSearcher = (*CorpusStore)(nil)
)
