package driven

import "context"

// CacheStats holds process-wide hit/miss counters for an embedding cache.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRate returns hits / (hits + misses), or 0 when the cache is unused.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EmbeddingCache is a content-addressed cache of text -> vector.
// Keys are derived from the exact text, so identical chunk content
// anywhere in a codebase hits the same entry. Entries are write-once;
// they are only expired by TTL or explicitly deleted.
//
// The cache is strictly a cost/latency optimization: implementations
// must treat every underlying-store failure as non-fatal. A failed Get
// is a miss, a failed Set is silently dropped.
type EmbeddingCache interface {
	// Get returns the cached vector for text, or nil on a miss.
	Get(ctx context.Context, text string) ([]float32, error)

	// Set stores the vector for text.
	Set(ctx context.Context, text string, vector []float32) error

	// MGet returns one entry per input text, nil for misses.
	MGet(ctx context.Context, texts []string) ([][]float32, error)

	// MSet stores vectors for the given texts. Lengths must match.
	MSet(ctx context.Context, texts []string, vectors [][]float32) error

	// Delete removes the entry for text, if present.
	Delete(ctx context.Context, text string) error

	// Stats returns the process-wide hit/miss counters.
	Stats() CacheStats

	// ResetStats zeroes the counters.
	ResetStats()
}
