package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
	"github.com/custodia-labs/coderag-core/internal/runtime"
)

// Ensure rerankerService implements Reranker
var _ driving.Reranker = (*rerankerService)(nil)

// RerankerConfig holds reranking tunables.
type RerankerConfig struct {
	PreviewLen int // characters of chunk content shown per candidate
	MaxTokens  int // completion budget for the ranking response
}

// DefaultRerankerConfig returns sensible defaults
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		PreviewLen: 200,
		MaxTokens:  256,
	}
}

// rerankerService reorders a candidate set with a generative model.
// Reranking is strictly optional: every failure path falls back to the
// first topK of the original order and never surfaces an error.
type rerankerService struct {
	services *runtime.Services
	logger   *slog.Logger
	cfg      RerankerConfig
}

// NewRerankerService creates a new Reranker.
func NewRerankerService(services *runtime.Services, logger *slog.Logger, cfg RerankerConfig) driving.Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewLen <= 0 {
		cfg = DefaultRerankerConfig()
	}
	return &rerankerService{services: services, logger: logger, cfg: cfg}
}

// Rerank reorders results by model-judged relevance and truncates to topK.
func (s *rerankerService) Rerank(ctx context.Context, query string, results []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	if topK <= 0 || len(results) <= topK {
		return results
	}

	fallback := results[:topK]

	llm := s.services.LLMService()
	if llm == nil {
		return fallback
	}

	prompt := s.buildPrompt(query, results)
	output, err := llm.Complete(ctx, prompt, s.cfg.MaxTokens)
	if err != nil {
		s.logger.Warn("rerank completion failed, keeping original order", "error", err)
		return fallback
	}

	order := parseRankings(output, len(results))
	if len(order) == 0 {
		s.logger.Warn("rerank output had no valid indices, keeping original order")
		return fallback
	}

	reordered := make([]domain.RetrievalResult, 0, len(results))
	used := make([]bool, len(results))
	for _, idx := range order {
		reordered = append(reordered, results[idx])
		used[idx] = true
	}
	// Candidates the model did not mention keep their original order.
	for i, r := range results {
		if !used[i] {
			reordered = append(reordered, r)
		}
	}

	reordered = reordered[:topK]
	for i := range reordered {
		reordered[i].Provenance = domain.ProvenanceReranked
	}
	return reordered
}

// buildPrompt enumerates the candidates with truncated previews and asks
// for ranked indices, one per line, most relevant first.
func (s *rerankerService) buildPrompt(query string, results []domain.RetrievalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are ranking code fragments by relevance to a query.\n\nQuery: %s\n\nCandidates:\n", query)
	for i, r := range results {
		preview := truncateToRune(r.Content, s.cfg.PreviewLen)
		fmt.Fprintf(&b, "[%d] %s (lines %d-%d)\n%s\n\n", i+1, r.FilePath, r.StartLine, r.EndLine, preview)
	}
	b.WriteString("Output only the candidate numbers ranked by relevance, one per line, most relevant first. No other text.")
	return b.String()
}

// truncateToRune cuts s to at most max bytes on a rune boundary, so the
// preview never ends in a broken UTF-8 sequence.
func truncateToRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseRankings scans lines for bare integers, accepting only 1-based
// indices within range, deduplicating repeats and preserving first-seen
// order. Returns 0-based indices.
func parseRankings(output string, n int) []int {
	seen := make(map[int]bool)
	var order []int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		num, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		if num < 1 || num > n || seen[num] {
			continue
		}
		seen[num] = true
		order = append(order, num-1)
	}
	return order
}
