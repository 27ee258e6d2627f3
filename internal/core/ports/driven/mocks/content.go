package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// MockContentProvider serves an in-memory snapshot file tree.
type MockContentProvider struct {
	mu    sync.Mutex
	files map[string]string // path -> content
	fail  map[string]error  // path -> forced error
}

// NewMockContentProvider creates a new MockContentProvider
func NewMockContentProvider() *MockContentProvider {
	return &MockContentProvider{
		files: make(map[string]string),
		fail:  make(map[string]error),
	}
}

// AddFile adds a file to the snapshot.
func (m *MockContentProvider) AddFile(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// RemoveFile removes a file from the snapshot.
func (m *MockContentProvider) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// FailFile makes GetFile return err for the given path.
func (m *MockContentProvider) FailFile(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = err
}

func (m *MockContentProvider) ListFiles(ctx context.Context, repo, ref string) ([]domain.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FileEntry
	for path, content := range m.files {
		out = append(out, domain.FileEntry{Path: path, Size: int64(len(content))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MockContentProvider) GetFile(ctx context.Context, repo, ref, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[path]; ok {
		return nil, err
	}
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return []byte(content), nil
}
