package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
	"github.com/custodia-labs/coderag-core/internal/postprocessors"
	"github.com/custodia-labs/coderag-core/internal/runtime"
)

// Ensure Indexer implements IndexingService
var _ driving.IndexingService = (*Indexer)(nil)

// defaultExcludedDirs are skipped during snapshot enumeration.
var defaultExcludedDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", "__pycache__",
	"dist", "build", "target", ".next", ".venv",
}

// DefaultExtensions returns the source extensions indexed when the
// config does not provide its own set.
func DefaultExtensions() map[string]bool {
	return map[string]bool{
		"go": true, "js": true, "jsx": true, "ts": true, "tsx": true,
		"py": true, "java": true, "rb": true, "rs": true,
		"c": true, "h": true, "cpp": true, "hpp": true, "cc": true,
		"cs": true, "php": true, "kt": true, "swift": true, "scala": true,
		"md": true, "yaml": true, "yml": true, "json": true, "toml": true,
		"sql": true, "sh": true, "css": true, "html": true, "proto": true,
	}
}

// Indexer drives full and incremental indexing runs:
// enumerate -> chunk -> embed (cache first) -> upsert vectors + persist
// chunk records, with per-batch progress totals.
type Indexer struct {
	indexStore  driven.IndexStore
	chunkStore  driven.ChunkStore
	vectorStore driven.VectorStore
	cache       driven.EmbeddingCache
	content     driven.ContentProvider
	chunker     driven.Chunker
	pipeline    *postprocessors.Pipeline
	services    *runtime.Services
	logger      *slog.Logger

	batchSize    int
	maxFileSize  int64
	excludedDirs []string
	extensions   map[string]bool
}

// IndexerConfig holds dependencies for the Indexer.
type IndexerConfig struct {
	IndexStore  driven.IndexStore
	ChunkStore  driven.ChunkStore
	VectorStore driven.VectorStore
	Cache       driven.EmbeddingCache
	Content     driven.ContentProvider
	Chunker     driven.Chunker
	Services    *runtime.Services
	Logger      *slog.Logger

	// Pipeline filters chunks before embedding. Defaults to
	// postprocessors.DefaultPipeline().
	Pipeline *postprocessors.Pipeline

	// BatchSize bounds concurrently processed files. Default 10.
	BatchSize int
	// MaxFileSize skips larger files. Default 1 MB.
	MaxFileSize int64
	// ExcludedDirs are path segments to skip. Defaults cover dependency,
	// build-output and VCS directories.
	ExcludedDirs []string
	// Extensions is the set of recognized source extensions (without dot).
	Extensions map[string]bool
}

// NewIndexer creates a new Indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = 1 << 20
	}
	excluded := cfg.ExcludedDirs
	if excluded == nil {
		excluded = defaultExcludedDirs
	}
	extensions := cfg.Extensions
	if extensions == nil {
		extensions = DefaultExtensions()
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = postprocessors.DefaultPipeline()
	}

	return &Indexer{
		indexStore:   cfg.IndexStore,
		chunkStore:   cfg.ChunkStore,
		vectorStore:  cfg.VectorStore,
		cache:        cfg.Cache,
		content:      cfg.Content,
		chunker:      cfg.Chunker,
		pipeline:     pipeline,
		services:     cfg.Services,
		logger:       logger,
		batchSize:    batchSize,
		maxFileSize:  maxFileSize,
		excludedDirs: excluded,
		extensions:   extensions,
	}
}

// fileStats aggregates per-file processing totals.
type fileStats struct {
	files   int
	chunks  int
	tokens  int
	costUSD float64
	skipped int
}

func (s *fileStats) add(other fileStats) {
	s.files += other.files
	s.chunks += other.chunks
	s.tokens += other.tokens
	s.costUSD += other.costUSD
	s.skipped += other.skipped
}

// IndexRepository runs a full indexing pass over a snapshot.
func (i *Indexer) IndexRepository(ctx context.Context, projectID, repo, ref string) (*domain.Index, error) {
	start := time.Now()

	index := &domain.Index{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Repo:      repo,
		Ref:       ref,
		Status:    domain.IndexStatusPending,
		CreatedAt: time.Now(),
	}
	if err := i.indexStore.Create(ctx, index); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	i.logger.Info("indexing started", "index_id", index.ID, "project_id", projectID, "repo", repo, "ref", ref)

	embeddingService := i.services.EmbeddingService()
	if embeddingService == nil {
		return i.failRun(ctx, index.ID, start, fmt.Errorf("no embedding service configured: %w", domain.ErrServiceUnavailable))
	}

	if err := i.vectorStore.EnsureCollection(ctx, embeddingService.Dimensions()); err != nil {
		return i.failRun(ctx, index.ID, start, fmt.Errorf("ensure collection: %w", err))
	}

	if err := i.indexStore.SetStatus(ctx, index.ID, domain.IndexStatusIndexing, ""); err != nil {
		return i.failRun(ctx, index.ID, start, err)
	}

	entries, err := i.content.ListFiles(ctx, repo, ref)
	if err != nil {
		return i.failRun(ctx, index.ID, start, fmt.Errorf("list files: %w", err))
	}

	var paths []string
	for _, entry := range entries {
		if i.eligible(entry) {
			paths = append(paths, entry.Path)
		}
	}

	total, err := i.processPaths(ctx, index, paths)
	if err != nil {
		return i.failRun(ctx, index.ID, start, err)
	}

	if err := i.indexStore.SetStatus(ctx, index.ID, domain.IndexStatusCompleted, ""); err != nil {
		return i.failRun(ctx, index.ID, start, err)
	}

	i.logger.Info("indexing completed",
		"index_id", index.ID,
		"files", total.files,
		"chunks", total.chunks,
		"tokens", total.tokens,
		"cost_usd", total.costUSD,
		"skipped", total.skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return i.indexStore.Get(ctx, index.ID)
}

// UpdateIndex applies a file-change delta to an existing index.
// Chunks of removed and modified paths are deleted then recreated for the
// surviving set; counters move by delta, never by recount.
func (i *Indexer) UpdateIndex(ctx context.Context, indexID string, changes *domain.FileChanges, newRef string) (*domain.Index, error) {
	start := time.Now()

	if changes == nil {
		return nil, fmt.Errorf("nil changes: %w", domain.ErrInvalidInput)
	}

	index, err := i.indexStore.Get(ctx, indexID)
	if err != nil {
		return nil, err
	}

	if err := i.indexStore.SetStatus(ctx, indexID, domain.IndexStatusUpdating, ""); err != nil {
		return nil, err
	}

	i.logger.Info("incremental update started",
		"index_id", indexID,
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed),
		"new_ref", newRef,
	)

	embeddingService := i.services.EmbeddingService()
	if embeddingService == nil {
		return i.failRun(ctx, indexID, start, fmt.Errorf("no embedding service configured: %w", domain.ErrServiceUnavailable))
	}

	// Delete first: removed and modified paths lose their chunks and
	// vector points before anything is recreated.
	stale := append(append([]string{}, changes.Removed...), changes.Modified...)
	var deletedChunks int
	if len(stale) > 0 {
		deletedIDs, err := i.chunkStore.DeleteByIndexAndPaths(ctx, indexID, stale)
		if err != nil {
			return i.failRun(ctx, indexID, start, fmt.Errorf("delete chunks: %w", err))
		}
		deletedChunks = len(deletedIDs)

		values := make([]any, len(stale))
		for n, p := range stale {
			values[n] = p
		}
		filter := driven.NewVectorFilter().WithMust("index_id", indexID).WithAny("file_path", values)
		if err := i.vectorStore.DeleteByFilter(ctx, filter); err != nil {
			return i.failRun(ctx, indexID, start, fmt.Errorf("delete vectors: %w", err))
		}
	}

	reprocess := append(append([]string{}, changes.Modified...), changes.Added...)
	total, err := i.processPathsForUpdate(ctx, index, reprocess)
	if err != nil {
		return i.failRun(ctx, indexID, start, err)
	}

	filesDelta := len(changes.Added) - len(changes.Removed)
	chunksDelta := total.chunks - deletedChunks
	if err := i.indexStore.UpdateTotals(ctx, indexID, filesDelta, chunksDelta, total.tokens, total.costUSD); err != nil {
		return i.failRun(ctx, indexID, start, err)
	}

	if err := i.indexStore.SetRef(ctx, indexID, newRef); err != nil {
		return i.failRun(ctx, indexID, start, err)
	}

	if err := i.indexStore.SetStatus(ctx, indexID, domain.IndexStatusCompleted, ""); err != nil {
		return i.failRun(ctx, indexID, start, err)
	}

	i.logger.Info("incremental update completed",
		"index_id", indexID,
		"chunks_deleted", deletedChunks,
		"chunks_created", total.chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return i.indexStore.Get(ctx, indexID)
}

// GetIndex returns an index with its aggregate metrics.
func (i *Indexer) GetIndex(ctx context.Context, indexID string) (*domain.Index, error) {
	return i.indexStore.Get(ctx, indexID)
}

// ListIndexes returns all indexes for a project, newest first.
func (i *Indexer) ListIndexes(ctx context.Context, projectID string) ([]*domain.Index, error) {
	return i.indexStore.ListByProject(ctx, projectID)
}

// processPaths works through paths in bounded-concurrency batches,
// updating running totals after each batch. Per-file failures are logged
// and skipped; the run continues.
func (i *Indexer) processPaths(ctx context.Context, index *domain.Index, paths []string) (fileStats, error) {
	var total fileStats

	for batchStart := 0; batchStart < len(paths); batchStart += i.batchSize {
		batchEnd := batchStart + i.batchSize
		if batchEnd > len(paths) {
			batchEnd = len(paths)
		}

		var mu sync.Mutex
		var batch fileStats

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(i.batchSize)
		for _, path := range paths[batchStart:batchEnd] {
			g.Go(func() error {
				stats, err := i.processFile(gctx, index, path)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					i.logger.Warn("file skipped", "index_id", index.ID, "path", path, "error", err)
					batch.skipped++
					return nil
				}
				batch.add(stats)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}

		total.add(batch)
		if err := i.indexStore.UpdateTotals(ctx, index.ID, batch.files, batch.chunks, batch.tokens, batch.costUSD); err != nil {
			return total, fmt.Errorf("update totals: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return total, err
		}
	}

	return total, nil
}

// processPathsForUpdate is processPaths without the per-batch totals
// write; incremental runs apply one delta at the end.
func (i *Indexer) processPathsForUpdate(ctx context.Context, index *domain.Index, paths []string) (fileStats, error) {
	var total fileStats

	for batchStart := 0; batchStart < len(paths); batchStart += i.batchSize {
		batchEnd := batchStart + i.batchSize
		if batchEnd > len(paths) {
			batchEnd = len(paths)
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(i.batchSize)
		for _, path := range paths[batchStart:batchEnd] {
			g.Go(func() error {
				stats, err := i.processFile(gctx, index, path)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					i.logger.Warn("file skipped", "index_id", index.ID, "path", path, "error", err)
					total.skipped++
					return nil
				}
				total.add(stats)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}

	return total, nil
}

// processFile chunks one file, resolves embeddings cache-first and writes
// the chunk records and vector points under a shared generated id.
func (i *Indexer) processFile(ctx context.Context, index *domain.Index, path string) (fileStats, error) {
	raw, err := i.content.GetFile(ctx, index.Repo, index.Ref, path)
	if err != nil {
		return fileStats{}, fmt.Errorf("fetch: %w", err)
	}

	chunks := i.pipeline.Process(i.chunker.Chunk(path, string(raw)))
	if len(chunks) == 0 {
		return fileStats{files: 1}, nil
	}

	now := time.Now()
	texts := make([]string, len(chunks))
	for n, chunk := range chunks {
		chunk.ID = uuid.NewString()
		chunk.IndexID = index.ID
		chunk.CreatedAt = now
		texts[n] = chunk.Content
	}

	vectors, stats, err := i.embedTexts(ctx, texts)
	if err != nil {
		return fileStats{}, err
	}
	stats.files = 1
	stats.chunks = len(chunks)

	points := make([]driven.VectorPoint, len(chunks))
	for n, chunk := range chunks {
		points[n] = driven.VectorPoint{
			ID:      chunk.ID,
			Vector:  vectors[n],
			Payload: driven.ChunkPayload(chunk),
		}
	}

	if err := i.vectorStore.Upsert(ctx, points); err != nil {
		return fileStats{}, fmt.Errorf("upsert vectors: %w", err)
	}
	if err := i.chunkStore.SaveBatch(ctx, chunks); err != nil {
		return fileStats{}, fmt.Errorf("save chunks: %w", err)
	}

	return stats, nil
}

// embedTexts resolves one vector per text, cache first, provider for the
// misses. Cache errors degrade to misses; cache writes are best effort.
func (i *Indexer) embedTexts(ctx context.Context, texts []string) ([][]float32, fileStats, error) {
	var stats fileStats

	vectors, err := i.cache.MGet(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		vectors = make([][]float32, len(texts))
	}

	var missTexts []string
	var missIdx []int
	for n, v := range vectors {
		stats.tokens += approxTokens(texts[n])
		if v == nil {
			missTexts = append(missTexts, texts[n])
			missIdx = append(missIdx, n)
		}
	}

	if len(missTexts) > 0 {
		embeddingService := i.services.EmbeddingService()
		if embeddingService == nil {
			return nil, stats, fmt.Errorf("no embedding service configured: %w", domain.ErrServiceUnavailable)
		}
		fresh, err := embeddingService.Embed(ctx, missTexts)
		if err != nil {
			return nil, stats, fmt.Errorf("embed: %w", err)
		}
		if len(fresh) != len(missTexts) {
			return nil, stats, fmt.Errorf("embedding count mismatch: got %d, want %d", len(fresh), len(missTexts))
		}
		for n, v := range fresh {
			vectors[missIdx[n]] = v
		}
		if err := i.cache.MSet(ctx, missTexts, fresh); err != nil {
			i.logger.Debug("embedding cache mset failed", "error", err)
		}

		missTokens := 0
		for _, t := range missTexts {
			missTokens += approxTokens(t)
		}
		stats.costUSD = embeddingService.EstimateCost(missTokens)
	}

	return vectors, stats, nil
}

// eligible filters snapshots to recognized, reasonably sized source files
// outside excluded directories.
func (i *Indexer) eligible(entry domain.FileEntry) bool {
	if entry.Size <= 0 || entry.Size > i.maxFileSize {
		return false
	}
	for _, dir := range i.excludedDirs {
		if hasPathSegment(entry.Path, dir) {
			return false
		}
	}
	if i.extensions == nil {
		return true
	}
	dot := strings.LastIndex(entry.Path, ".")
	if dot < 0 || dot == len(entry.Path)-1 {
		return false
	}
	return i.extensions[strings.ToLower(entry.Path[dot+1:])]
}

func hasPathSegment(path, segment string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// approxTokens estimates tokens as characters/4, for cost accounting only.
func approxTokens(text string) int {
	return len(text) / 4
}

// failRun marks the index failed and returns the terminal row. Partial
// writes are not rolled back; a failed index is unusable until re-run.
func (i *Indexer) failRun(ctx context.Context, indexID string, start time.Time, runErr error) (*domain.Index, error) {
	i.logger.Error("indexing failed",
		"index_id", indexID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", runErr,
	)

	if err := i.indexStore.SetStatus(ctx, indexID, domain.IndexStatusFailed, runErr.Error()); err != nil {
		i.logger.Warn("failed to mark index failed", "index_id", indexID, "error", err)
	}

	index, err := i.indexStore.Get(ctx, indexID)
	if err != nil {
		return nil, runErr
	}
	return index, runErr
}
