package mocks

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// MockVectorStore is an in-memory VectorStore scoring by cosine similarity.
type MockVectorStore struct {
	mu         sync.Mutex
	points     map[string]driven.VectorPoint
	dimensions int
	failNext   error
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{points: make(map[string]driven.VectorPoint)}
}

// SetFailNext makes the next operation return err.
func (m *MockVectorStore) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockVectorStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MockVectorStore) EnsureCollection(ctx context.Context, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.dimensions = dimensions
	return nil
}

func (m *MockVectorStore) Upsert(ctx context.Context, points []driven.VectorPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, k int, filter *driven.VectorFilter, scoreThreshold float64) ([]driven.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var matches []driven.VectorMatch
	for _, p := range m.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		score := cosine(vector, p.Vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		matches = append(matches, driven.VectorMatch{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockVectorStore) DeleteByFilter(ctx context.Context, filter *driven.VectorFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for id, p := range m.points {
		if matchesFilter(p.Payload, filter) {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MockVectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *MockVectorStore) Count(ctx context.Context, filter *driven.VectorFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range m.points {
		if matchesFilter(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MockVectorStore) Scroll(ctx context.Context, filter *driven.VectorFilter, limit int, offset string) (*driven.ScrollPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var ids []string
	for id, p := range m.points {
		if matchesFilter(p.Payload, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if offset != "" {
		start, _ = strconv.Atoi(offset)
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	page := &driven.ScrollPage{}
	for _, id := range ids[start:end] {
		page.Points = append(page.Points, m.points[id])
	}
	if end < len(ids) {
		page.NextOffset = strconv.Itoa(end)
	}
	return page, nil
}

func (m *MockVectorStore) HealthCheck(ctx context.Context) error {
	return nil
}

func matchesFilter(payload map[string]any, filter *driven.VectorFilter) bool {
	if filter == nil {
		return true
	}
	for field, want := range filter.Must {
		if payload[field] != want {
			return false
		}
	}
	if filter.AnyField != "" {
		found := false
		for _, v := range filter.AnyValues {
			if payload[filter.AnyField] == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
