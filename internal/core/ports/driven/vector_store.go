package driven

import (
	"context"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// VectorPoint is one entry in a vector collection: an id, the embedding,
// and an arbitrary payload echoed back by searches.
type VectorPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// VectorMatch is one search hit.
type VectorMatch struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// VectorFilter is a boolean AND of exact-match predicates, plus an
// optional OR group for multi-value matches (e.g. several file paths).
type VectorFilter struct {
	// Must entries all have to match exactly (AND).
	Must map[string]any
	// Any matches when the named field equals any of the values (OR),
	// ANDed with Must.
	AnyField  string
	AnyValues []any
}

// NewVectorFilter returns an empty filter ready for Must entries.
func NewVectorFilter() *VectorFilter {
	return &VectorFilter{Must: make(map[string]any)}
}

// WithMust adds an exact-match predicate and returns the filter.
func (f *VectorFilter) WithMust(field string, value any) *VectorFilter {
	if f.Must == nil {
		f.Must = make(map[string]any)
	}
	f.Must[field] = value
	return f
}

// WithAny sets the OR group and returns the filter.
func (f *VectorFilter) WithAny(field string, values []any) *VectorFilter {
	f.AnyField = field
	f.AnyValues = values
	return f
}

// ScrollPage is one page of a paginated full scan.
type ScrollPage struct {
	Points     []VectorPoint `json:"points"`
	NextOffset string        `json:"next_offset"` // empty when exhausted
}

// VectorStore abstracts the external vector index (Qdrant).
// Collections are created lazily on first use with fixed dimensionality
// and cosine similarity. Upserts are idempotent by point id.
type VectorStore interface {
	// EnsureCollection creates the collection if missing.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, points []VectorPoint) error

	// Search returns up to k matches meeting scoreThreshold (0 disables),
	// sorted by descending similarity. filter may be nil.
	Search(ctx context.Context, vector []float32, k int, filter *VectorFilter, scoreThreshold float64) ([]VectorMatch, error)

	// DeleteByFilter removes all points matching the filter.
	DeleteByFilter(ctx context.Context, filter *VectorFilter) error

	// DeleteByIDs removes points by id.
	DeleteByIDs(ctx context.Context, ids []string) error

	// Count returns the number of points matching the filter (nil = all).
	Count(ctx context.Context, filter *VectorFilter) (int, error)

	// Scroll pages through points matching the filter. Pass the previous
	// page's NextOffset to continue; empty offset starts from the beginning.
	Scroll(ctx context.Context, filter *VectorFilter, limit int, offset string) (*ScrollPage, error)

	// HealthCheck verifies the vector store is reachable.
	HealthCheck(ctx context.Context) error
}

// ChunkPayload builds the standard payload stored with a chunk's point.
func ChunkPayload(c *domain.Chunk) map[string]any {
	return map[string]any{
		"index_id":   c.IndexID,
		"file_path":  c.FilePath,
		"content":    c.Content,
		"start_line": c.StartLine,
		"end_line":   c.EndLine,
		"chunk_type": string(c.Type),
		"language":   c.Language,
		"name":       c.Name,
	}
}
