package driven

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// ChunkStore handles persisted chunk records (PostgreSQL).
// Embeddings are stored in the vector store, not here.
type ChunkStore interface {
	// SaveBatch saves multiple chunks in a transaction
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// GetByIDs retrieves chunks by id
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error)

	// GetByIndex retrieves chunks for an index with pagination
	GetByIndex(ctx context.Context, indexID string, limit, offset int) ([]*domain.Chunk, error)

	// GetByIndexAndPaths retrieves all chunks for an index within the given file paths
	GetByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]*domain.Chunk, error)

	// SearchKeyword returns chunks of an index whose content matches any of
	// the keywords (case-insensitive substring), optionally narrowed by filter.
	SearchKeyword(ctx context.Context, indexID string, keywords []string, filter domain.RetrievalFilter, limit int) ([]*domain.Chunk, error)

	// DeleteByIndex deletes all chunks for an index
	DeleteByIndex(ctx context.Context, indexID string) error

	// DeleteByIndexAndPaths deletes all chunks for an index within the given
	// file paths, returning the ids of the deleted chunks for vector cleanup.
	DeleteByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]string, error)

	// CountByIndex returns chunk count for an index
	CountByIndex(ctx context.Context, indexID string) (int, error)
}

// IndexStore handles index snapshot persistence (PostgreSQL).
type IndexStore interface {
	// Create persists a new index row
	Create(ctx context.Context, index *domain.Index) error

	// Get retrieves an index by id
	Get(ctx context.Context, id string) (*domain.Index, error)

	// LatestCompleted returns the most recently completed index for a
	// project, or domain.ErrNoCompletedIndex.
	LatestCompleted(ctx context.Context, projectID string) (*domain.Index, error)

	// SetStatus transitions the index status, enforcing the forward-only
	// rule. Error text is stored when transitioning to failed.
	SetStatus(ctx context.Context, id string, status domain.IndexStatus, errText string) error

	// UpdateTotals adds the given deltas to the index counters
	UpdateTotals(ctx context.Context, id string, files, chunks, tokens int, costUSD float64) error

	// SetRef advances the snapshot reference after an incremental run
	SetRef(ctx context.Context, id string, ref string) error

	// Touch updates the last-used timestamp after a successful retrieval
	Touch(ctx context.Context, id string) error

	// ListByProject returns all indexes for a project, newest first
	ListByProject(ctx context.Context, projectID string) ([]*domain.Index, error)
}
