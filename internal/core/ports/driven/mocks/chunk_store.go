package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// MockChunkStore is an in-memory ChunkStore for testing.
type MockChunkStore struct {
	mu     sync.Mutex
	chunks map[string]*domain.Chunk
}

// NewMockChunkStore creates a new MockChunkStore
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{chunks: make(map[string]*domain.Chunk)}
}

func (m *MockChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MockChunkStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chunk
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockChunkStore) GetByIndex(ctx context.Context, indexID string, limit, offset int) ([]*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.IndexID == indexID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockChunkStore) GetByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[p] = true
	}
	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.IndexID == indexID && pathSet[c.FilePath] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockChunkStore) SearchKeyword(ctx context.Context, indexID string, keywords []string, filter domain.RetrievalFilter, limit int) ([]*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.IndexID != indexID {
			continue
		}
		if filter.Language != "" && c.Language != filter.Language {
			continue
		}
		if filter.ChunkType != "" && c.Type != filter.ChunkType {
			continue
		}
		if len(filter.FilePaths) > 0 && !containsString(filter.FilePaths, c.FilePath) {
			continue
		}
		lower := strings.ToLower(c.Content)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockChunkStore) DeleteByIndex(ctx context.Context, indexID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.IndexID == indexID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MockChunkStore) DeleteByIndexAndPaths(ctx context.Context, indexID string, paths []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[p] = true
	}
	var deleted []string
	for id, c := range m.chunks {
		if c.IndexID == indexID && pathSet[c.FilePath] {
			deleted = append(deleted, id)
			delete(m.chunks, id)
		}
	}
	return deleted, nil
}

func (m *MockChunkStore) CountByIndex(ctx context.Context, indexID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		if c.IndexID == indexID {
			n++
		}
	}
	return n, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
