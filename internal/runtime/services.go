package runtime

import (
	"context"
	"sync"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Services holds references to dynamically configurable AI services.
// Embedding and LLM services can be swapped at runtime; retrievers and
// the indexer resolve them per call rather than holding instances.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
}

// NewServices creates an empty Services registry.
func NewServices() *Services {
	return &Services{}
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// CanEmbed reports whether semantic retrieval and indexing are possible.
func (s *Services) CanEmbed() bool {
	return s.EmbeddingService() != nil
}

// CanRerank reports whether LLM reranking is possible.
func (s *Services) CanRerank() bool {
	return s.LLMService() != nil
}

// SetEmbeddingService updates the embedding service, closing the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetLLMService updates the LLM service, closing the old one.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil {
		_ = s.llmService.Close()
	}
	s.llmService = svc
}

// ValidateAndSetEmbedding validates connectivity before setting the
// embedding service.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting the LLM service.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetLLMService(svc)
	return nil
}

// Close shuts down all services.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}
	return nil
}
