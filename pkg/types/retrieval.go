package types

import "time"

// Chunk is an immutable unit of the knowledge corpus: a text span cut
// from a source document together with its precomputed embedding.
// Chunks are created at index-build time, never mutated, and retired
// only by a full rebuild.
type Chunk struct {
	// ID uniquely identifies the chunk
	ID string `json:"id"`

	// DocumentID identifies the source document the chunk was cut from
	DocumentID string `json:"document_id"`

	// Position is the chunk's sequence number within its source document
	Position int `json:"position"`

	// Text is the chunk's text span
	Text string `json:"text"`

	// Embedding is the precomputed vector for Text
	Embedding []float32 `json:"embedding,omitempty"`

	// DocumentModTime is the source document's modification time,
	// used to break score ties by recency when known
	DocumentModTime time.Time `json:"document_mod_time,omitempty"`
}

// ScoredChunk pairs a chunk with its similarity score for one query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is an ordered sequence of scored chunks, highest
// similarity first, at most topK long, with every score at or above the
// configured floor. An empty result is valid: it means nothing in the
// corpus cleared the floor.
type RetrievalResult struct {
	Matches []ScoredChunk `json:"matches"`
}

// Empty reports whether nothing cleared the similarity floor.
func (r RetrievalResult) Empty() bool {
	return len(r.Matches) == 0
}

// TopScore returns the highest similarity in the result, or 0 when empty.
func (r RetrievalResult) TopScore() float64 {
	if len(r.Matches) == 0 {
		return 0
	}
	return r.Matches[0].Score
}

// Sources returns the distinct source document IDs in rank order.
func (r RetrievalResult) Sources() []string {
	seen := make(map[string]bool, len(r.Matches))
	out := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		if !seen[m.Chunk.DocumentID] {
			seen[m.Chunk.DocumentID] = true
			out = append(out, m.Chunk.DocumentID)
		}
	}
	return out
}
