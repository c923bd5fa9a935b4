// Package retrieval owns the knowledge corpus: ingesting source
// documents, splitting them into overlapping chunks, embedding them,
// and serving top-K cosine-similarity queries from an in-memory index
// that is rebuilt by atomic swap.
package retrieval

import (
	"fmt"
	"strings"

	"github.com/vruksh/agroqa/pkg/types"
)

// minChunkChars drops fragments too short to carry meaning (stray
// headers, trailing words).
const minChunkChars = 20

// Chunker splits document text into overlapping fixed-size chunks.
// Size and Overlap are measured in whitespace-separated tokens; the
// overlap keeps semantic units that straddle a boundary from being
// lost to both sides.
type Chunker struct {
	Size    int // tokens per chunk (default: 150)
	Overlap int // tokens shared between adjacent chunks (default: 30)
}

// NewChunker creates a chunker, falling back to the defaults for
// non-positive or inconsistent parameters.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 150
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits a document's text into chunks, assigning each a
// deterministic ID of the form "<docID>#<position>". Chunks shorter
// than minChunkChars are dropped. Embeddings are left nil; the engine
// fills them in batches.
func (c *Chunker) Chunk(doc Document) []types.Chunk {
	tokens := strings.Fields(doc.Text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.Size - c.Overlap
	var chunks []types.Chunk
	position := 0

	for start := 0; start < len(tokens); start += stride {
		end := start + c.Size
		if end > len(tokens) {
			end = len(tokens)
		}

		text := strings.Join(tokens[start:end], " ")
		if len(text) >= minChunkChars {
			chunks = append(chunks, types.Chunk{
				ID:              fmt.Sprintf("%s#%d", doc.ID, position),
				DocumentID:      doc.ID,
				Position:        position,
				Text:            text,
				DocumentModTime: doc.ModTime,
			})
			position++
		}

		if end == len(tokens) {
			break
		}
	}
	return chunks
}
