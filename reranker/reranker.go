// Package reranker defines the second-stage relevance scoring contract
// applied after vector similarity search.
package reranker

import "context"

// Result references an input document by position with its rerank score.
type Result struct {
	Index int
	Score float32
}

// Reranker reorders candidate documents by relevance to the query.
// Results are sorted by descending score.
type Reranker interface {
	Rank(ctx context.Context, query string, documents []string) ([]Result, error)
}
