package domain

import "time"

// ChunkType classifies what kind of source construct a chunk covers
type ChunkType string

const (
	ChunkTypeFunction ChunkType = "function" // top-level function or bound function expression
	ChunkTypeClass    ChunkType = "class"    // class declaration
	ChunkTypeModule   ChunkType = "module"   // line-based fallback slice of a file
)

// Chunk represents a contiguous, semantically bounded slice of source code.
// Content is always an exact substring of the file it was cut from.
// Chunks are owned by the Index that created them and are immutable once
// written; incremental updates delete-and-recreate, never edit in place.
type Chunk struct {
	ID        string            `json:"id"`
	IndexID   string            `json:"index_id"`
	FilePath  string            `json:"file_path"`
	Content   string            `json:"content"`
	StartLine int               `json:"start_line"` // 1-based, inclusive
	EndLine   int               `json:"end_line"`   // 1-based, inclusive
	Type      ChunkType         `json:"type"`
	Language  string            `json:"language"`
	Name      string            `json:"name,omitempty"` // identifier for function/class chunks
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FileEntry describes one file in a repository snapshot.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// FileChanges describes the delta between two snapshot refs,
// as reported by the content provider.
type FileChanges struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// IsEmpty reports whether the delta contains no paths at all.
func (c *FileChanges) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}
