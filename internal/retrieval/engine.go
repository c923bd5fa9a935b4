package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/llm"
	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/pkg/types"
)

// State is the engine lifecycle state. The engine starts Unloaded,
// moves through Building to Ready, and alternates Ready/Rebuilding for
// the rest of its life. Queries are served only from Ready and
// Rebuilding (the previous index keeps serving during a rebuild).
type State int32

const (
	StateUnloaded State = iota
	StateBuilding
	StateReady
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Stats describes the currently served index.
type Stats struct {
	State     State
	Model     string
	Dimension int
	Chunks    int
	Documents int
	BuiltAt   time.Time
}

// Engine builds and serves the corpus index. All methods are safe for
// concurrent use; Retrieve holds only a read lock and a rebuild
// replaces the index with a single pointer swap, so queries are never
// blocked by an in-progress build and never observe a partial index.
type Engine struct {
	cfg      config.RetrievalConfig
	embedder llm.EmbeddingGenerator
	store    storage.CorpusStore
	chunker  *Chunker

	mu        sync.RWMutex
	state     State
	idx       *index
	searcher  storage.VectorSearcher
	dimension int
	documents int
	builtAt   time.Time
}

// NewEngine creates an engine in the Unloaded state. Stores that rank
// server-side (pgvector) serve queries directly; the in-memory index
// covers everything else and any backend search failure.
func NewEngine(cfg config.RetrievalConfig, embedder llm.EmbeddingGenerator, store storage.CorpusStore) *Engine {
	searcher, _ := store.(storage.VectorSearcher)
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		searcher: searcher,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Ready reports whether queries can be served.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx != nil
}

// Stats returns a snapshot of the served index.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		State:     e.state,
		Model:     e.embedder.GetModel(),
		Dimension: e.dimension,
		Documents: e.documents,
		BuiltAt:   e.builtAt,
	}
	if e.idx != nil {
		s.Chunks = e.idx.size()
	}
	return s
}

// Load serves the persisted artifact without re-embedding anything.
// It returns storage.ErrNotFound when no artifact exists and
// storage.ErrModelMismatch when the artifact was built with a
// different embedding model; both cases require a Build.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.beginBuild(); err != nil {
		return err
	}

	artifact, err := e.store.LoadArtifact(ctx)
	if err != nil {
		e.abortBuild()
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to load corpus artifact: %w", err)
	}
	if artifact.Model != e.embedder.GetModel() {
		e.abortBuild()
		return fmt.Errorf("%w: artifact built with %q, configured model is %q",
			storage.ErrModelMismatch, artifact.Model, e.embedder.GetModel())
	}

	idx := newIndex(artifact.Chunks, artifact.Dimension)
	e.install(idx, artifact.Dimension, countDocuments(artifact.Chunks), artifact.BuiltAt)
	log.Printf("Corpus index loaded: %d chunks, model %s", idx.size(), artifact.Model)
	return nil
}

// Build ingests the corpus directory, embeds every chunk, persists the
// artifact, and installs the new index. While a Build or Rebuild is in
// progress, further build requests are rejected; queries keep being
// served from the previous index if one exists.
func (e *Engine) Build(ctx context.Context) error {
	if err := e.beginBuild(); err != nil {
		return err
	}

	idx, artifact, err := e.buildIndex(ctx)
	if err != nil {
		e.abortBuild()
		return err
	}

	if err := e.store.SaveArtifact(ctx, artifact); err != nil {
		e.abortBuild()
		return fmt.Errorf("failed to persist corpus artifact: %w", err)
	}

	e.install(idx, artifact.Dimension, countDocuments(artifact.Chunks), artifact.BuiltAt)
	log.Printf("Corpus index built: %d chunks from %d documents", idx.size(), countDocuments(artifact.Chunks))
	return nil
}

// Rebuild is Build for an engine that is already serving. It exists
// for call-site clarity; the state machine treats them identically.
func (e *Engine) Rebuild(ctx context.Context) error {
	return e.Build(ctx)
}

// Retrieve embeds the question and returns the topK most similar
// chunks at or above the similarity floor. topK <= 0 selects the
// configured default. Returns types.ErrIndexNotReady until an index
// has been installed. When the store ranks server-side the search runs
// there; the in-memory index answers otherwise and whenever the
// backend search fails.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int) (*types.RetrievalResult, error) {
	e.mu.RLock()
	idx := e.idx
	searcher := e.searcher
	e.mu.RUnlock()
	if idx == nil {
		return nil, types.ErrIndexNotReady
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != idx.dimension {
		return nil, fmt.Errorf("%w: query embedding has dimension %d, index has %d",
			storage.ErrModelMismatch, len(vec), idx.dimension)
	}

	if searcher != nil {
		matches, err := searcher.SearchSimilar(ctx, vec, topK, e.cfg.MinSimilarity)
		switch {
		case err == nil:
			return &types.RetrievalResult{Matches: matches}, nil
		case errors.Is(err, storage.ErrNoVectorIndex):
			// Permanent for this process; stop asking.
			log.Printf("Warning: backend has no vector index, using in-memory search: %v", err)
			e.mu.Lock()
			e.searcher = nil
			e.mu.Unlock()
		default:
			log.Printf("Warning: server-side similarity search failed, using in-memory index: %v", err)
		}
	}

	return &types.RetrievalResult{Matches: idx.search(vec, topK, e.cfg.MinSimilarity)}, nil
}

// buildIndex loads and chunks the corpus, embeds the chunks in
// batches, and returns the new index and artifact. It takes no locks;
// the previous index keeps serving until install.
func (e *Engine) buildIndex(ctx context.Context) (*index, *storage.CorpusArtifact, error) {
	docs, err := LoadDocuments(e.cfg.CorpusPath)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("no corpus documents found in %s", e.cfg.CorpusPath)
	}

	var chunks []types.Chunk
	for _, doc := range docs {
		chunks = append(chunks, e.chunker.Chunk(doc)...)
	}
	if limit := e.cfg.MaxChunks; limit > 0 && len(chunks) > limit {
		log.Printf("Warning: corpus produced %d chunks, truncating to %d", len(chunks), limit)
		chunks = chunks[:limit]
	}
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("corpus in %s produced no chunks", e.cfg.CorpusPath)
	}

	dimension, err := e.embedChunks(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}

	artifact := &storage.CorpusArtifact{
		Model:     e.embedder.GetModel(),
		Dimension: dimension,
		BuiltAt:   time.Now().UTC(),
		Chunks:    chunks,
	}
	return newIndex(chunks, dimension), artifact, nil
}

// embedChunks fills in chunk embeddings batch by batch and returns the
// embedding dimension.
func (e *Engine) embedChunks(ctx context.Context, chunks []types.Chunk) (int, error) {
	batchSize := e.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	dimension := 0
	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}
		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed batch at chunk %d: %w", start, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(texts))
		}

		for i, vec := range vectors {
			if dimension == 0 {
				dimension = len(vec)
			}
			if len(vec) != dimension {
				return 0, fmt.Errorf("inconsistent embedding dimension: %d then %d", dimension, len(vec))
			}
			chunks[start+i].Embedding = vec
		}
	}
	if dimension == 0 {
		return 0, errors.New("embedding model returned empty vectors")
	}
	return dimension, nil
}

// beginBuild moves the state machine into Building or Rebuilding,
// rejecting concurrent builds.
func (e *Engine) beginBuild() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateBuilding, StateRebuilding:
		return errors.New("index build already in progress")
	case StateReady:
		e.state = StateRebuilding
	default:
		e.state = StateBuilding
	}
	return nil
}

// abortBuild reverts a failed build. A previous index, if any, keeps
// serving.
func (e *Engine) abortBuild() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil {
		e.state = StateReady
	} else {
		e.state = StateUnloaded
	}
}

// install swaps in the new index and marks the engine Ready.
func (e *Engine) install(idx *index, dimension, documents int, builtAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx = idx
	e.dimension = dimension
	e.documents = documents
	e.builtAt = builtAt
	e.state = StateReady
}

func countDocuments(chunks []types.Chunk) int {
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		seen[chunk.DocumentID] = struct{}{}
	}
	return len(seen)
}
