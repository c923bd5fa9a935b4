package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Answer composition uses single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Index build and query time must use the same implementation: retrieval
// correctness depends on index and query vectors sharing one embedding
// space (same model, same dimensionality).
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetModel() string
}
