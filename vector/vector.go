package vector

import (
	"context"
	"math"
)

// Record is a stored passage embedding. Collection separates the three
// evidence corpora (cases, regulations, guidelines).
type Record struct {
	ID         string
	Collection string
	Vector     []float32
	Content    string
	Metadata   map[string]string
}

// Hit is a search result with its similarity score in [0,1], highest first.
type Hit struct {
	Record
	Score float32
}

// Store defines the interface for vector storage and similarity search
type Store interface {
	// Add inserts or replaces records in their collections
	Add(ctx context.Context, records ...*Record) error

	// Search finds records in a collection similar to the query vector,
	// sorted by descending score. An empty result is not an error.
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]Hit, error)

	// Delete removes a record by ID
	Delete(ctx context.Context, collection, id string) error

	// Clear removes all records in a collection
	Clear(ctx context.Context, collection string) error

	// Count returns the number of records in a collection
	Count(ctx context.Context, collection string) (int, error)
}

// CosineSimilarityOperator returns the PostgreSQL pgvector operator used for
// similarity ordering
func CosineSimilarityOperator() string {
	return "<->"
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB))+1e-8)
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
