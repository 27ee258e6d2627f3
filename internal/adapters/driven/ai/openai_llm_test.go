package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAILLM_Complete(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "2\n1\n3"}},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAILLM("test-key", "gpt-4o-mini", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := svc.Complete(context.Background(), "rank these", 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2\n1\n3" {
		t.Errorf("unexpected completion %q", out)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("expected max_tokens 256, got %d", gotReq.MaxTokens)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("expected temperature 0, got %f", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "rank these" {
		t.Errorf("unexpected messages %+v", gotReq.Messages)
	}
}

func TestOpenAILLM_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit", "code": "429"}}`))
	}))
	defer server.Close()

	svc, _ := NewOpenAILLM("test-key", "", server.URL)
	_, err := svc.Complete(context.Background(), "prompt", 10)
	if err == nil {
		t.Fatal("expected error from API")
	}
}

func TestOpenAILLM_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	svc, _ := NewOpenAILLM("test-key", "", server.URL)
	_, err := svc.Complete(context.Background(), "prompt", 10)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAILLM_RequiresKey(t *testing.T) {
	if _, err := NewOpenAILLM("", "", ""); err == nil {
		t.Fatal("expected error for missing key")
	}
}
