package mocks

import (
	"context"
	"sync"
)

// MockLLMService returns a scripted completion.
type MockLLMService struct {
	mu       sync.Mutex
	response string
	err      error
	Prompts  []string
	Closed   bool
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{}
}

// SetResponse scripts the completion returned by Complete.
func (m *MockLLMService) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	m.err = nil
}

// SetError makes Complete return err.
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockLLMService) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockLLMService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
