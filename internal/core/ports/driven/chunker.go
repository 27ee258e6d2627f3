package driven

import "github.com/custodia-labs/coderag-core/internal/core/domain"

// Chunker splits file content into semantically bounded chunks.
// Implementations attempt structural extraction first and fall back to
// fixed-size line chunking; they never return an error for unparseable
// input.
type Chunker interface {
	// Chunk splits content into chunks, in source order. The returned
	// chunks carry file path, line span, type, language and name, but no
	// id or index ownership; the indexer assigns those.
	Chunk(path string, content string) []*domain.Chunk
}

// ChunkOptions configures chunking behavior
type ChunkOptions struct {
	TargetSize    int // target characters per chunk
	Overlap       int // character overlap between fallback chunks
	FuncSizeMult  int // skip functions larger than TargetSize * FuncSizeMult
	ClassSizeMult int // skip classes larger than TargetSize * ClassSizeMult
}

// DefaultChunkOptions returns sensible defaults
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetSize:    1500,
		Overlap:       200,
		FuncSizeMult:  2,
		ClassSizeMult: 3,
	}
}
