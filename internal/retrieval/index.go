package retrieval

import (
	"math"
	"sort"

	"github.com/vruksh/agroqa/pkg/types"
)

// index is an immutable in-memory cosine-similarity index. Chunk
// vectors are normalized once at construction so a search is a single
// dot product per chunk. Rebuilds construct a fresh index and swap the
// pointer; an index is never mutated after newIndex returns.
type index struct {
	dimension  int
	chunks     []types.Chunk
	normalized [][]float32
}

// newIndex builds an index over chunks. Chunks whose embedding length
// does not match dimension, or whose vector has zero magnitude, are
// skipped.
func newIndex(chunks []types.Chunk, dimension int) *index {
	idx := &index{dimension: dimension}
	for _, chunk := range chunks {
		if len(chunk.Embedding) != dimension {
			continue
		}
		unit, ok := normalize(chunk.Embedding)
		if !ok {
			continue
		}
		idx.chunks = append(idx.chunks, chunk)
		idx.normalized = append(idx.normalized, unit)
	}
	return idx
}

// size returns the number of indexed chunks.
func (idx *index) size() int { return len(idx.chunks) }

// search returns up to topK chunks by descending cosine similarity to
// the query vector, excluding scores below floor. Equal scores rank
// fresher documents first.
func (idx *index) search(query []float32, topK int, floor float64) []types.ScoredChunk {
	if len(query) != idx.dimension || topK <= 0 {
		return nil
	}
	unit, ok := normalize(query)
	if !ok {
		return nil
	}

	var matches []types.ScoredChunk
	for i, vec := range idx.normalized {
		score := dot(unit, vec)
		if score < floor {
			continue
		}
		matches = append(matches, types.ScoredChunk{Chunk: idx.chunks[i], Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.DocumentModTime.After(matches[j].Chunk.DocumentModTime)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// normalize returns the unit vector, or false for a zero vector.
func normalize(vec []float32) ([]float32, bool) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	unit := make([]float32, len(vec))
	for i, v := range vec {
		unit[i] = float32(float64(v) / norm)
	}
	return unit, true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
