package port

import "context"

// EmbeddingProvider abstracts the external text-embedding service.
// Implementations can target any OpenAI-compatible embeddings API.
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	// ModelName returns the identifier of the embedding model being used.
	ModelName() string

	// Dimension returns the fixed length of vectors produced by the model.
	Dimension() int

	// Embed generates a vector embedding for the given text. Newlines in
	// the input are normalized to spaces before submission.
	Embed(ctx context.Context, text string) ([]float32, error)
}
