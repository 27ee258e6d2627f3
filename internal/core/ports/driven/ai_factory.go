package driven

import "github.com/custodia-labs/coderag-core/internal/core/domain"

// AIServiceFactory creates AI services from provider settings.
// Unconfigured settings yield (nil, nil); the pipeline then runs
// degraded (no retrieval, or no reranking).
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
