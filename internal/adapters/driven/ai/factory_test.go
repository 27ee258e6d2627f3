package ai

import (
	"errors"
	"testing"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func TestFactory_CreateEmbeddingService(t *testing.T) {
	f := NewFactory()

	// Unconfigured settings mean "run without embeddings".
	svc, err := f.CreateEmbeddingService(nil)
	if err != nil || svc != nil {
		t.Errorf("expected (nil, nil) for nil settings, got (%v, %v)", svc, err)
	}

	svc, err = f.CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI})
	if err != nil || svc != nil {
		t.Errorf("expected (nil, nil) without api key, got (%v, %v)", svc, err)
	}

	svc, err = f.CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "key",
		Model:    "text-embedding-3-small",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}
	if svc.Model() != "text-embedding-3-small" {
		t.Errorf("unexpected model %s", svc.Model())
	}

	_, err = f.CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: "acme-ai",
		APIKey:   "key",
	})
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestFactory_CreateLLMService(t *testing.T) {
	f := NewFactory()

	svc, err := f.CreateLLMService(nil)
	if err != nil || svc != nil {
		t.Errorf("expected (nil, nil) for nil settings, got (%v, %v)", svc, err)
	}

	svc, err = f.CreateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "key",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}

	_, err = f.CreateLLMService(&domain.LLMSettings{Provider: "acme-ai", APIKey: "key"})
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
