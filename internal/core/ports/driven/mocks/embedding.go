package mocks

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool
	healthErr  error
	fixed      map[string][]float32
	EmbedCalls int
	Closed     bool
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 4,
		model:      "mock-embedding-model",
		fixed:      make(map[string][]float32),
	}
}

// SetVector pins the embedding returned for an exact text.
func (m *MockEmbeddingService) SetVector(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = vector
	if len(vector) > 0 {
		m.dimensions = len(vector)
	}
}

// SetFailNext makes the next call return an error.
func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls++
	if m.failNext {
		m.failNext = false
		return nil, context.DeadlineExceeded
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vectorFor(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls++
	if m.failNext {
		m.failNext = false
		return nil, context.DeadlineExceeded
	}
	return m.vectorFor(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) EstimateCost(tokenCount int) float64 {
	return float64(tokenCount) * 0.00002 / 1000
}

// SetHealthError makes HealthCheck fail.
func (m *MockEmbeddingService) SetHealthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

func (m *MockEmbeddingService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// vectorFor returns the pinned vector for text, or a deterministic
// hash-derived one.
func (m *MockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.fixed[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}
