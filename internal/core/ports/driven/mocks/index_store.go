package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// MockIndexStore is an in-memory IndexStore for testing.
type MockIndexStore struct {
	mu      sync.Mutex
	indexes map[string]*domain.Index
}

// NewMockIndexStore creates a new MockIndexStore
func NewMockIndexStore() *MockIndexStore {
	return &MockIndexStore{indexes: make(map[string]*domain.Index)}
}

func (m *MockIndexStore) Create(ctx context.Context, index *domain.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.indexes[index.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *index
	m.indexes[index.ID] = &cp
	return nil
}

func (m *MockIndexStore) Get(ctx context.Context, id string) (*domain.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *idx
	return &cp, nil
}

func (m *MockIndexStore) LatestCompleted(ctx context.Context, projectID string) (*domain.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Index
	for _, idx := range m.indexes {
		if idx.ProjectID != projectID || idx.Status != domain.IndexStatusCompleted {
			continue
		}
		if latest == nil || idx.CreatedAt.After(latest.CreatedAt) {
			latest = idx
		}
	}
	if latest == nil {
		return nil, domain.ErrNoCompletedIndex
	}
	cp := *latest
	return &cp, nil
}

func (m *MockIndexStore) SetStatus(ctx context.Context, id string, status domain.IndexStatus, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !idx.CanTransition(status) {
		return domain.ErrIndexStatusTransition
	}
	idx.Status = status
	idx.Error = errText
	if status == domain.IndexStatusCompleted || status == domain.IndexStatusFailed {
		now := time.Now()
		idx.CompletedAt = &now
	}
	return nil
}

func (m *MockIndexStore) UpdateTotals(ctx context.Context, id string, files, chunks, tokens int, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[id]
	if !ok {
		return domain.ErrNotFound
	}
	idx.TotalFiles += files
	idx.TotalChunks += chunks
	idx.TotalTokens += tokens
	idx.CostUSD += costUSD
	return nil
}

func (m *MockIndexStore) SetRef(ctx context.Context, id string, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[id]
	if !ok {
		return domain.ErrNotFound
	}
	idx.Ref = ref
	return nil
}

func (m *MockIndexStore) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	idx.LastUsedAt = &now
	return nil
}

func (m *MockIndexStore) ListByProject(ctx context.Context, projectID string) ([]*domain.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Index
	for _, idx := range m.indexes {
		if idx.ProjectID == projectID {
			cp := *idx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
