package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/embedder"
)

// Requests are chunked so a large ingest cannot exceed the API input limit.
const batchSize = 16

// Embedder implements embedder.Embedder using the OpenAI embeddings API.
// API calls retry with capped exponential backoff, 3 attempts total.
type Embedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

// New creates an OpenAI-backed embedder.
func New(apiKey, baseURL string, model openaisdk.EmbeddingModel, dimension int) embedder.Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openaisdk.NewClient(opts...)
	return &Embedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}
}

// Dimension returns the number of embedding dimensions
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts a single text to a vector embedding
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to embeddings
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * time.Second
	expo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, func() ([][]float32, error) {
		params := openaisdk.EmbeddingNewParams{
			Model: e.model,
			Input: openaisdk.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}

		out := make([][]float32, len(resp.Data))
		for i, emb := range resp.Data {
			out[i] = convertVector(emb.Embedding, e.dimension)
		}
		return out, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(3))
}

func convertVector(input []float64, expected int) []float32 {
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
