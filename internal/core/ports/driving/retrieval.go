package driving

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// RetrievalService answers natural-language queries with ranked code
// fragments from a project's most recent completed index.
type RetrievalService interface {
	// Retrieve performs a single semantic retrieval.
	// Returns domain.ErrNoCompletedIndex when the project has never
	// finished an indexing run.
	Retrieve(ctx context.Context, query, projectID string, topK int, filter domain.RetrievalFilter, scoreThreshold float64) ([]domain.RetrievalResult, error)

	// RetrieveMultiple unions independent per-query retrievals,
	// deduplicated by chunk id and sorted by score.
	RetrieveMultiple(ctx context.Context, queries []string, projectID string, kPerQuery int) ([]domain.RetrievalResult, error)
}

// HybridRetrievalService fuses semantic retrieval with keyword search
// over the persisted chunks of the same snapshot.
type HybridRetrievalService interface {
	Retrieve(ctx context.Context, query, projectID string, topK int, filter domain.RetrievalFilter) ([]domain.RetrievalResult, error)
}

// Reranker optionally reorders a candidate set with a generative model.
// It never fails: malformed model output falls back to original order.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []domain.RetrievalResult, topK int) []domain.RetrievalResult
}
