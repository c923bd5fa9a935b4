// Package sqlite persists the corpus artifact in a single SQLite file,
// the default storage engine. Embeddings are stored as little-endian
// float32 BLOBs; the artifact is replaced inside one transaction so
// readers never observe a half-written corpus.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/pkg/types"
)

// schema creates the corpus tables. The settings table carries
// persisted user configuration (see internal/config).
const schema = `
CREATE TABLE IF NOT EXISTS corpus_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	built_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	document_mod_time TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, position);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// CorpusStore implements storage.CorpusStore on SQLite.
type CorpusStore struct {
	db *sql.DB
}

// Open creates or opens the corpus database under dataPath and applies
// the schema.
func Open(dataPath string) (*CorpusStore, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "corpus.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; WAL keeps concurrent readers from blocking on it.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &CorpusStore{db: db}, nil
}

// DB exposes the underlying handle for the settings table.
func (s *CorpusStore) DB() *sql.DB { return s.db }

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

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, text, embedding, document_mod_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, chunk := range artifact.Chunks {
		if len(chunk.Embedding) != artifact.Dimension {
			return fmt.Errorf("%w: chunk %s embedding length %d does not match dimension %d",
				storage.ErrInvalidInput, chunk.ID, len(chunk.Embedding), artifact.Dimension)
		}
		var modTime interface{}
		if !chunk.DocumentModTime.IsZero() {
			modTime = chunk.DocumentModTime.UTC()
		}
		if _, err := insert.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Position, chunk.Text,
			serializeEmbedding(chunk.Embedding), modTime); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	builtAt := artifact.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO corpus_meta (id, model, dimension, built_at) VALUES (1, ?, ?, ?)
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

// serializeEmbedding converts a float32 vector to little-endian bytes.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32
// vector, validating the length against the artifact dimension.
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

// Compile-time assertion.
var _ storage.CorpusStore = (*CorpusStore)(nil)
