package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
)

// Ensure hybridService implements HybridRetrievalService
var _ driving.HybridRetrievalService = (*hybridService)(nil)

// HybridConfig holds the fusion tunables. The scoring constants are
// heuristic defaults carried as configuration, not tuned invariants.
type HybridConfig struct {
	SemanticWeight   float64 // weight applied to semantic scores
	KeywordWeight    float64 // weight applied to keyword scores
	OccurrenceWeight float64 // score per keyword occurrence
	WholeWordBonus   float64 // bonus per keyword matching as a whole word
	MaxKeywordScore  float64 // keyword score clamp
	MinKeywordLen    int     // words shorter than this are dropped
	CandidateFactor  int     // semantic candidates fetched per requested result
}

// DefaultHybridConfig returns sensible defaults
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		SemanticWeight:   0.7,
		KeywordWeight:    0.3,
		OccurrenceWeight: 0.1,
		WholeWordBonus:   0.2,
		MaxKeywordScore:  1.0,
		MinKeywordLen:    3,
		CandidateFactor:  3,
	}
}

// stopWords are dropped during keyword extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "with": true,
	"this": true, "that": true, "from": true, "they": true, "will": true,
	"would": true, "there": true, "their": true, "what": true, "which": true,
	"when": true, "where": true, "how": true, "does": true, "into": true,
	"has": true, "have": true, "had": true, "was": true, "were": true,
}

// hybridService fuses semantic retrieval with keyword search over the
// persisted chunks of the same snapshot.
type hybridService struct {
	semantic   driving.RetrievalService
	indexStore driven.IndexStore
	chunkStore driven.ChunkStore
	logger     *slog.Logger
	cfg        HybridConfig
}

// NewHybridService creates a new HybridRetrievalService on top of the
// semantic retriever and the chunk store.
func NewHybridService(
	semantic driving.RetrievalService,
	indexStore driven.IndexStore,
	chunkStore driven.ChunkStore,
	logger *slog.Logger,
	cfg HybridConfig,
) driving.HybridRetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SemanticWeight == 0 && cfg.KeywordWeight == 0 {
		cfg = DefaultHybridConfig()
	}
	return &hybridService{
		semantic:   semantic,
		indexStore: indexStore,
		chunkStore: chunkStore,
		logger:     logger,
		cfg:        cfg,
	}
}

// Retrieve fuses the two retrieval legs, deduplicates per file path and
// truncates to topK.
func (s *hybridService) Retrieve(ctx context.Context, query, projectID string, topK int, filter domain.RetrievalFilter) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultRetrieverConfig().DefaultTopK
	}

	index, err := s.indexStore.LatestCompleted(ctx, projectID)
	if err != nil {
		return nil, err
	}

	candidates := topK * s.cfg.CandidateFactor
	if candidates < topK {
		candidates = topK
	}

	// Both legs must score the same snapshot, even if another index
	// completes mid-query.
	filter.IndexID = index.ID

	semanticResults, err := s.semantic.Retrieve(ctx, query, projectID, candidates, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("semantic leg: %w", err)
	}

	keywordResults, err := s.keywordSearch(ctx, index.ID, query, filter, candidates)
	if err != nil {
		// The keyword leg is additive; semantic results still stand.
		s.logger.Warn("keyword search failed, using semantic results only", "error", err)
		keywordResults = nil
	}

	fused := s.fuse(semanticResults, keywordResults)
	fused = dedupeByFile(fused)

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// keywordSearch scores snapshot chunks against the query keywords.
func (s *hybridService) keywordSearch(ctx context.Context, indexID, query string, filter domain.RetrievalFilter, limit int) ([]domain.RetrievalResult, error) {
	keywords := ExtractKeywords(query, s.cfg.MinKeywordLen)
	if len(keywords) == 0 {
		// Nothing to contribute; not an error.
		return nil, nil
	}

	chunks, err := s.chunkStore.SearchKeyword(ctx, indexID, keywords, filter, limit*4)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		score := s.keywordScore(chunk.Content, keywords)
		if score <= 0 {
			continue
		}
		results = append(results, domain.RetrievalResult{
			ChunkID:    chunk.ID,
			FilePath:   chunk.FilePath,
			Content:    chunk.Content,
			Score:      score,
			StartLine:  chunk.StartLine,
			EndLine:    chunk.EndLine,
			Language:   chunk.Language,
			ChunkType:  chunk.Type,
			Name:       chunk.Name,
			Metadata:   chunk.Metadata,
			Provenance: domain.ProvenanceKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordScore sums occurrence weight per keyword hit plus a whole-word
// bonus per keyword, clamped to MaxKeywordScore.
func (s *hybridService) keywordScore(content string, keywords []string) float64 {
	lower := strings.ToLower(content)
	words := splitWords(lower)

	var score float64
	for _, kw := range keywords {
		occurrences := strings.Count(lower, kw)
		if occurrences == 0 {
			continue
		}
		score += float64(occurrences) * s.cfg.OccurrenceWeight
		if words[kw] {
			score += s.cfg.WholeWordBonus
		}
	}
	if score > s.cfg.MaxKeywordScore {
		score = s.cfg.MaxKeywordScore
	}
	return score
}

// fuse combines the two legs by weighted score sum. A chunk in both legs
// sums its weighted contributions; a chunk in one keeps its single term.
func (s *hybridService) fuse(semantic, keyword []domain.RetrievalResult) []domain.RetrievalResult {
	position := make(map[string]int)
	fused := make([]domain.RetrievalResult, 0, len(semantic)+len(keyword))

	for _, r := range semantic {
		r.Score = r.Score * s.cfg.SemanticWeight
		position[r.ChunkID] = len(fused)
		fused = append(fused, r)
	}

	for _, r := range keyword {
		weighted := r.Score * s.cfg.KeywordWeight
		if pos, ok := position[r.ChunkID]; ok {
			fused[pos].Score += weighted
			fused[pos].Provenance = domain.ProvenanceFused
			continue
		}
		r.Score = weighted
		position[r.ChunkID] = len(fused)
		fused = append(fused, r)
	}

	return fused
}

// dedupeByFile keeps only the highest-scoring chunk per file path, a
// diversity guarantee preventing one hot file from dominating results.
func dedupeByFile(results []domain.RetrievalResult) []domain.RetrievalResult {
	best := make(map[string]int)
	var out []domain.RetrievalResult
	for _, r := range results {
		if pos, ok := best[r.FilePath]; ok {
			if r.Score > out[pos].Score {
				out[pos] = r
			}
			continue
		}
		best[r.FilePath] = len(out)
		out = append(out, r)
	}
	return out
}

// ExtractKeywords lowercases the query, strips punctuation and drops
// stop-words and words shorter than minLen.
func ExtractKeywords(query string, minLen int) []string {
	if minLen <= 0 {
		minLen = 3
	}
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, strings.ToLower(query))

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) < minLen || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// splitWords returns the set of whole words in the (already lowered) text.
func splitWords(lower string) map[string]bool {
	words := make(map[string]bool)
	start := -1
	for i, r := range lower {
		isWord := r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_'
		if isWord && start < 0 {
			start = i
		}
		if !isWord && start >= 0 {
			words[lower[start:i]] = true
			start = -1
		}
	}
	if start >= 0 {
		words[lower[start:]] = true
	}
	return words
}
