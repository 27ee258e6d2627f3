package driven

import (
	"context"
)

// LLMService provides generative model completions used by the reranker.
type LLMService interface {
	// Complete generates a completion for the prompt.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
