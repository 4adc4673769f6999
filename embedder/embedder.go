// Package embedder defines the text-embedding contract used by the retrieval
// engine.
package embedder

import "context"

// Embedder converts text into vector embeddings
type Embedder interface {
	// Embed converts a single text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the number of embedding dimensions
	Dimension() int
}
