package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/coderag-core/internal/runtime"
)

// stubChunker emits one chunk per non-empty file.
type stubChunker struct{}

func (stubChunker) Chunk(path, content string) []*domain.Chunk {
	if content == "" {
		return nil
	}
	return []*domain.Chunk{{
		FilePath:  path,
		Content:   content,
		StartLine: 1,
		EndLine:   strings.Count(content, "\n") + 1,
		Type:      domain.ChunkTypeModule,
		Language:  "go",
	}}
}

type indexerFixture struct {
	indexStore  *mocks.MockIndexStore
	chunkStore  *mocks.MockChunkStore
	vectorStore *mocks.MockVectorStore
	cache       *mocks.MockEmbeddingCache
	content     *mocks.MockContentProvider
	embedding   *mocks.MockEmbeddingService
	services    *runtime.Services
}

func newIndexerFixture() (*indexerFixture, *Indexer) {
	f := &indexerFixture{
		indexStore:  mocks.NewMockIndexStore(),
		chunkStore:  mocks.NewMockChunkStore(),
		vectorStore: mocks.NewMockVectorStore(),
		cache:       mocks.NewMockEmbeddingCache(),
		content:     mocks.NewMockContentProvider(),
		embedding:   mocks.NewMockEmbeddingService(),
		services:    runtime.NewServices(),
	}
	f.services.SetEmbeddingService(f.embedding)

	indexer := NewIndexer(IndexerConfig{
		IndexStore:  f.indexStore,
		ChunkStore:  f.chunkStore,
		VectorStore: f.vectorStore,
		Cache:       f.cache,
		Content:     f.content,
		Chunker:     stubChunker{},
		Services:    f.services,
	})
	return f, indexer
}

func TestIndexRepository_FullRun(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("internal/auth/middleware.go", "package auth\n\nfunc Middleware() {}\n")
	f.content.AddFile("internal/store/postgres.go", "package store\n\nfunc Open() {}\n")

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if index.Status != domain.IndexStatusCompleted {
		t.Fatalf("expected completed, got %s", index.Status)
	}
	if index.TotalFiles != 2 {
		t.Errorf("expected 2 files, got %d", index.TotalFiles)
	}
	if index.TotalChunks != 2 {
		t.Errorf("expected 2 chunks, got %d", index.TotalChunks)
	}
	if index.TotalTokens <= 0 {
		t.Errorf("expected positive token count, got %d", index.TotalTokens)
	}
	if index.CostUSD <= 0 {
		t.Errorf("expected positive cost, got %f", index.CostUSD)
	}
	if index.CompletedAt == nil {
		t.Errorf("expected completed timestamp")
	}

	stored, err := f.chunkStore.CountByIndex(context.Background(), index.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 2 {
		t.Errorf("expected 2 persisted chunks, got %d", stored)
	}

	points, err := f.vectorStore.Count(context.Background(), driven.NewVectorFilter().WithMust("index_id", index.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if points != 2 {
		t.Errorf("expected 2 vector points, got %d", points)
	}
}

func TestIndexRepository_ChunkAndPointShareID(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := f.chunkStore.GetByIndex(context.Background(), index.ID, 0, 0)
	if err != nil || len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d (err %v)", len(chunks), err)
	}

	page, err := f.vectorStore.Scroll(context.Background(), driven.NewVectorFilter().WithMust("index_id", index.ID), 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(page.Points))
	}
	if page.Points[0].ID != chunks[0].ID {
		t.Errorf("chunk and vector point ids differ: %s vs %s", chunks[0].ID, page.Points[0].ID)
	}
}

func TestIndexRepository_PerFileFailureSkipped(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("good.go", "package good\n")
	f.content.AddFile("bad.go", "package bad\n")
	f.content.FailFile("bad.go", errors.New("blob unavailable"))

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("expected run to survive one bad file, got %v", err)
	}

	if index.Status != domain.IndexStatusCompleted {
		t.Fatalf("expected completed, got %s", index.Status)
	}
	if index.TotalFiles != 1 {
		t.Errorf("expected 1 indexed file, got %d", index.TotalFiles)
	}
}

func TestIndexRepository_FatalFailureMarksFailed(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")
	f.vectorStore.SetFailNext(errors.New("collection create refused"))

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err == nil {
		t.Fatalf("expected error")
	}
	if index == nil {
		t.Fatalf("expected terminal index row")
	}
	if index.Status != domain.IndexStatusFailed {
		t.Errorf("expected failed, got %s", index.Status)
	}
	if index.Error == "" {
		t.Errorf("expected error text on index")
	}
}

func TestIndexRepository_NoEmbeddingService(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")
	f.services.SetEmbeddingService(nil)

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if index.Status != domain.IndexStatusFailed {
		t.Errorf("expected failed, got %s", index.Status)
	}
}

func TestIndexRepository_FiltersIneligibleFiles(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")
	f.content.AddFile("node_modules/lodash/index.js", "module.exports = {}\n")
	f.content.AddFile("vendor/dep/dep.go", "package dep\n")
	f.content.AddFile("binary.exe", "MZ\x90\x00")

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.TotalFiles != 1 {
		t.Errorf("expected only a.go indexed, got %d files", index.TotalFiles)
	}
}

func TestIndexRepository_CacheHitAvoidsProvider(t *testing.T) {
	f, indexer := newIndexerFixture()
	content := "package a\n"
	f.content.AddFile("a.go", content)
	_ = f.cache.Set(context.Background(), content, []float32{1, 0, 0, 0})

	_, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.embedding.EmbedCalls != 0 {
		t.Errorf("expected no provider calls, got %d", f.embedding.EmbedCalls)
	}
}

func TestIndexRepository_BlankChunksDropped(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("real.go", "package a\n")
	f.content.AddFile("blank.go", "   \n\t\n")

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The blank file still counts as processed but yields no chunks.
	if index.TotalFiles != 2 {
		t.Errorf("expected 2 files, got %d", index.TotalFiles)
	}
	if index.TotalChunks != 1 {
		t.Errorf("expected 1 chunk, got %d", index.TotalChunks)
	}
}

func TestUpdateIndex_Incremental(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")
	f.content.AddFile("b.go", "package b\n")

	index, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a.go removed, b.go modified, c.go added.
	f.content.RemoveFile("a.go")
	f.content.AddFile("b.go", "package b\n\nfunc B() {}\n")
	f.content.AddFile("c.go", "package c\n")

	updated, err := indexer.UpdateIndex(context.Background(), index.ID, &domain.FileChanges{
		Added:    []string{"c.go"},
		Modified: []string{"b.go"},
		Removed:  []string{"a.go"},
	}, "def456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != domain.IndexStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.Ref != "def456" {
		t.Errorf("expected ref advanced to def456, got %s", updated.Ref)
	}
	if updated.TotalFiles != 2 {
		t.Errorf("expected 2 files after delta, got %d", updated.TotalFiles)
	}
	if updated.TotalChunks != 2 {
		t.Errorf("expected 2 chunks after delta, got %d", updated.TotalChunks)
	}

	// Nothing from the removed path survives in either store.
	leftover, err := f.chunkStore.GetByIndexAndPaths(context.Background(), index.ID, []string{"a.go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leftover) != 0 {
		t.Errorf("removed path still has %d chunks", len(leftover))
	}

	page, err := f.vectorStore.Scroll(context.Background(), driven.NewVectorFilter().WithMust("index_id", index.ID), 100, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range page.Points {
		if p.Payload["file_path"] == "a.go" {
			t.Errorf("vector point for removed path survived")
		}
	}

	// The modified file carries its new content.
	bChunks, err := f.chunkStore.GetByIndexAndPaths(context.Background(), index.ID, []string{"b.go"})
	if err != nil || len(bChunks) != 1 {
		t.Fatalf("expected 1 chunk for b.go, got %d (err %v)", len(bChunks), err)
	}
	if !strings.Contains(bChunks[0].Content, "func B()") {
		t.Errorf("modified file kept stale content")
	}
}

func TestUpdateIndex_FailedIndexRejected(t *testing.T) {
	f, indexer := newIndexerFixture()
	_ = f.indexStore.Create(context.Background(), &domain.Index{
		ID:        "idx-failed",
		ProjectID: "proj-1",
		Status:    domain.IndexStatusFailed,
	})

	_, err := indexer.UpdateIndex(context.Background(), "idx-failed", &domain.FileChanges{Added: []string{"a.go"}}, "ref")
	if !errors.Is(err, domain.ErrIndexStatusTransition) {
		t.Fatalf("expected ErrIndexStatusTransition, got %v", err)
	}
}

func TestUpdateIndex_NilChanges(t *testing.T) {
	_, indexer := newIndexerFixture()

	_, err := indexer.UpdateIndex(context.Background(), "idx-1", nil, "ref")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListIndexes(t *testing.T) {
	f, indexer := newIndexerFixture()
	f.content.AddFile("a.go", "package a\n")

	if _, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := indexer.IndexRepository(context.Background(), "proj-1", "acme/api", "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	indexes, err := indexer.ListIndexes(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indexes) != 2 {
		t.Fatalf("expected 2 indexes, got %d", len(indexes))
	}
}
