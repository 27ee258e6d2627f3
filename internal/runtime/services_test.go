package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven/mocks"
)

func TestServices_EmptyRegistry(t *testing.T) {
	services := NewServices()

	if services.CanEmbed() {
		t.Error("empty registry must not report embedding capability")
	}
	if services.CanRerank() {
		t.Error("empty registry must not report rerank capability")
	}
	if services.EmbeddingService() != nil {
		t.Error("expected nil embedding service")
	}
	if services.LLMService() != nil {
		t.Error("expected nil LLM service")
	}
}

func TestServices_SetAndGet(t *testing.T) {
	services := NewServices()

	embedding := mocks.NewMockEmbeddingService()
	services.SetEmbeddingService(embedding)

	if !services.CanEmbed() {
		t.Error("expected embedding capability")
	}
	if services.EmbeddingService() != embedding {
		t.Error("expected the registered embedding service")
	}

	llm := mocks.NewMockLLMService()
	services.SetLLMService(llm)

	if !services.CanRerank() {
		t.Error("expected rerank capability")
	}
}

func TestServices_ReplaceClosesOld(t *testing.T) {
	services := NewServices()

	old := mocks.NewMockEmbeddingService()
	services.SetEmbeddingService(old)

	services.SetEmbeddingService(mocks.NewMockEmbeddingService())

	if !old.Closed {
		t.Error("replaced service must be closed")
	}
}

func TestServices_ValidateAndSetEmbedding(t *testing.T) {
	services := NewServices()
	ctx := context.Background()

	good := mocks.NewMockEmbeddingService()
	if err := services.ValidateAndSetEmbedding(ctx, good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.EmbeddingService() != good {
		t.Error("expected the validated service to be set")
	}

	bad := mocks.NewMockEmbeddingService()
	bad.SetHealthError(errors.New("bad credentials"))
	if err := services.ValidateAndSetEmbedding(ctx, bad); err == nil {
		t.Fatal("expected validation error")
	}
	if !bad.Closed {
		t.Error("rejected service must be closed")
	}
	if services.EmbeddingService() != good {
		t.Error("failed validation must not replace the current service")
	}
}

func TestServices_ValidateAndSetNilClears(t *testing.T) {
	services := NewServices()
	ctx := context.Background()

	svc := mocks.NewMockEmbeddingService()
	services.SetEmbeddingService(svc)

	if err := services.ValidateAndSetEmbedding(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.CanEmbed() {
		t.Error("expected embedding capability cleared")
	}
	if !svc.Closed {
		t.Error("cleared service must be closed")
	}
}

func TestServices_Close(t *testing.T) {
	services := NewServices()

	embedding := mocks.NewMockEmbeddingService()
	llm := mocks.NewMockLLMService()
	services.SetEmbeddingService(embedding)
	services.SetLLMService(llm)

	if err := services.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !embedding.Closed || !llm.Closed {
		t.Error("close must shut down all registered services")
	}
	if services.CanEmbed() || services.CanRerank() {
		t.Error("closed registry must report no capabilities")
	}
}
