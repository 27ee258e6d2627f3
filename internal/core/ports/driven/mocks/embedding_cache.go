package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// MockEmbeddingCache is an in-memory EmbeddingCache for testing.
type MockEmbeddingCache struct {
	mu       sync.Mutex
	entries  map[string][]float32
	hits     atomic.Int64
	misses   atomic.Int64
	failGets bool
	failSets bool
}

// NewMockEmbeddingCache creates a new MockEmbeddingCache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{entries: make(map[string][]float32)}
}

// SetFailGets makes Get/MGet return errors (retrievers must treat as miss).
func (m *MockEmbeddingCache) SetFailGets(fail bool) { m.failGets = fail }

// SetFailSets makes Set/MSet return errors (callers must drop silently).
func (m *MockEmbeddingCache) SetFailSets(fail bool) { m.failSets = fail }

// Len returns the number of stored entries.
func (m *MockEmbeddingCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MockEmbeddingCache) Get(ctx context.Context, text string) ([]float32, error) {
	if m.failGets {
		return nil, context.DeadlineExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.entries[text]; ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)
	return nil, nil
}

func (m *MockEmbeddingCache) Set(ctx context.Context, text string, vector []float32) error {
	if m.failSets {
		return context.DeadlineExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[text] = vector
	return nil
}

func (m *MockEmbeddingCache) MGet(ctx context.Context, texts []string) ([][]float32, error) {
	if m.failGets {
		return nil, context.DeadlineExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.entries[text]; ok {
			m.hits.Add(1)
			out[i] = v
		} else {
			m.misses.Add(1)
		}
	}
	return out, nil
}

func (m *MockEmbeddingCache) MSet(ctx context.Context, texts []string, vectors [][]float32) error {
	if m.failSets {
		return context.DeadlineExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, text := range texts {
		if i < len(vectors) {
			m.entries[text] = vectors[i]
		}
	}
	return nil
}

func (m *MockEmbeddingCache) Delete(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, text)
	return nil
}

func (m *MockEmbeddingCache) Stats() driven.CacheStats {
	return driven.CacheStats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

func (m *MockEmbeddingCache) ResetStats() {
	m.hits.Store(0)
	m.misses.Store(0)
}
