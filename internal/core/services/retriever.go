package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
	"github.com/custodia-labs/coderag-core/internal/runtime"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// RetrieverConfig holds tunables for semantic retrieval.
type RetrieverConfig struct {
	// DefaultTopK is used when the caller passes topK <= 0.
	DefaultTopK int
	// MinScore is the minimum similarity applied when the caller passes
	// no threshold. Low-confidence matches are discarded rather than
	// always filling topK.
	MinScore float64
}

// DefaultRetrieverConfig returns sensible defaults
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		DefaultTopK: 10,
		MinScore:    0.25,
	}
}

// retrievalService implements semantic retrieval over the vector store,
// using the embedding cache in front of the embedding provider.
type retrievalService struct {
	indexStore  driven.IndexStore
	vectorStore driven.VectorStore
	cache       driven.EmbeddingCache
	services    *runtime.Services
	logger      *slog.Logger
	cfg         RetrieverConfig
}

// NewRetrievalService creates a new semantic RetrievalService.
// AI services are accessed dynamically via runtime.Services.
func NewRetrievalService(
	indexStore driven.IndexStore,
	vectorStore driven.VectorStore,
	cache driven.EmbeddingCache,
	services *runtime.Services,
	logger *slog.Logger,
	cfg RetrieverConfig,
) driving.RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg = DefaultRetrieverConfig()
	}
	return &retrievalService{
		indexStore:  indexStore,
		vectorStore: vectorStore,
		cache:       cache,
		services:    services,
		logger:      logger,
		cfg:         cfg,
	}
}

// Retrieve performs a single semantic retrieval against the most recently
// completed index for the project.
func (s *retrievalService) Retrieve(ctx context.Context, query, projectID string, topK int, filter domain.RetrievalFilter, scoreThreshold float64) ([]domain.RetrievalResult, error) {
	start := time.Now()

	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if scoreThreshold <= 0 {
		scoreThreshold = s.cfg.MinScore
	}

	indexID := filter.IndexID
	if indexID == "" {
		index, err := s.indexStore.LatestCompleted(ctx, projectID)
		if err != nil {
			return nil, err
		}
		indexID = index.ID
	}

	vector, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.vectorStore.Search(ctx, vector, topK, vectorFilterFor(indexID, filter), scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(matches))
	chunkIDs := make([]string, 0, len(matches))
	scores := make([]float64, 0, len(matches))
	for _, m := range matches {
		r := resultFromMatch(m)
		r.Provenance = domain.ProvenanceSemantic
		results = append(results, r)
		chunkIDs = append(chunkIDs, m.ID)
		scores = append(scores, m.Score)
	}

	s.logger.Info("retrieval",
		"project_id", projectID,
		"index_id", indexID,
		"query", query,
		"chunk_ids", chunkIDs,
		"scores", scores,
		"count", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if err := s.indexStore.Touch(ctx, indexID); err != nil {
		s.logger.Warn("failed to touch index", "index_id", indexID, "error", err)
	}

	return results, nil
}

// RetrieveMultiple unions independent per-query retrievals. Queries are
// scored independently, never jointly; duplicates keep their best score.
func (s *retrievalService) RetrieveMultiple(ctx context.Context, queries []string, projectID string, kPerQuery int) ([]domain.RetrievalResult, error) {
	seen := make(map[string]int) // chunk id -> position in union
	var union []domain.RetrievalResult

	for _, query := range queries {
		results, err := s.Retrieve(ctx, query, projectID, kPerQuery, domain.RetrievalFilter{}, 0)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if pos, ok := seen[r.ChunkID]; ok {
				if r.Score > union[pos].Score {
					union[pos] = r
				}
				continue
			}
			seen[r.ChunkID] = len(union)
			union = append(union, r)
		}
	}

	sort.SliceStable(union, func(i, j int) bool { return union[i].Score > union[j].Score })
	return union, nil
}

// queryEmbedding resolves the query vector, cache first then provider.
// Cache failures degrade to misses; populating the cache is best effort.
func (s *retrievalService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if cached, err := s.cache.Get(ctx, query); err == nil && cached != nil {
		return cached, nil
	}

	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		return nil, fmt.Errorf("no embedding service configured: %w", domain.ErrServiceUnavailable)
	}

	vector, err := embeddingService.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if err := s.cache.Set(ctx, query, vector); err != nil {
		s.logger.Debug("embedding cache set failed", "error", err)
	}

	return vector, nil
}

// vectorFilterFor builds the store filter: the index scope is always
// present so queries can never leak across snapshots.
func vectorFilterFor(indexID string, filter domain.RetrievalFilter) *driven.VectorFilter {
	vf := driven.NewVectorFilter().WithMust("index_id", indexID)
	if filter.Language != "" {
		vf.WithMust("language", filter.Language)
	}
	if filter.ChunkType != "" {
		vf.WithMust("chunk_type", string(filter.ChunkType))
	}
	if len(filter.FilePaths) > 0 {
		values := make([]any, len(filter.FilePaths))
		for i, p := range filter.FilePaths {
			values[i] = p
		}
		vf.WithAny("file_path", values)
	}
	return vf
}

func resultFromMatch(m driven.VectorMatch) domain.RetrievalResult {
	return domain.RetrievalResult{
		ChunkID:   m.ID,
		FilePath:  payloadString(m.Payload, "file_path"),
		Content:   payloadString(m.Payload, "content"),
		Score:     m.Score,
		StartLine: payloadInt(m.Payload, "start_line"),
		EndLine:   payloadInt(m.Payload, "end_line"),
		Language:  payloadString(m.Payload, "language"),
		ChunkType: domain.ChunkType(payloadString(m.Payload, "chunk_type")),
		Name:      payloadString(m.Payload, "name"),
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
