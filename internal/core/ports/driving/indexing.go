package driving

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// IndexingService drives full and incremental indexing runs.
type IndexingService interface {
	// IndexRepository runs a full indexing pass over a snapshot and
	// returns the finished Index (completed or failed).
	IndexRepository(ctx context.Context, projectID, repo, ref string) (*domain.Index, error)

	// UpdateIndex applies a file-change delta to an existing index and
	// advances its snapshot ref.
	UpdateIndex(ctx context.Context, indexID string, changes *domain.FileChanges, newRef string) (*domain.Index, error)

	// GetIndex returns an index with its aggregate metrics.
	GetIndex(ctx context.Context, indexID string) (*domain.Index, error)

	// ListIndexes returns all indexes for a project, newest first.
	ListIndexes(ctx context.Context, projectID string) ([]*domain.Index, error)
}
