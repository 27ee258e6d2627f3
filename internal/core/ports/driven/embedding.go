package driven

import (
	"context"
)

// EmbeddingService generates text embeddings
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts.
	// Output order matches input order; the implementation batches
	// internally to respect per-call item limits.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// EstimateCost returns the USD cost of embedding tokenCount tokens.
	// Pure function over a per-model price table; unknown models use a
	// default price. Used for cost accounting only.
	EstimateCost(tokenCount int) float64

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
