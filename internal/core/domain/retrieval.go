package domain

// Provenance records which retrieval path produced a result
type Provenance string

const (
	ProvenanceSemantic Provenance = "semantic"
	ProvenanceKeyword  Provenance = "keyword"
	ProvenanceFused    Provenance = "fused"
	ProvenanceReranked Provenance = "reranked"
)

// RetrievalResult is a chunk reference plus a relevance score and the
// retrieval path that produced it.
type RetrievalResult struct {
	ChunkID    string            `json:"chunk_id"`
	FilePath   string            `json:"file_path"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	StartLine  int               `json:"start_line"`
	EndLine    int               `json:"end_line"`
	Language   string            `json:"language"`
	ChunkType  ChunkType         `json:"chunk_type"`
	Name       string            `json:"name,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Provenance Provenance        `json:"provenance"`
}

// RetrievalFilter narrows a retrieval to exact-match predicates.
// All fields are ANDed; FilePaths is an OR group within the AND.
type RetrievalFilter struct {
	// IndexID pins the retrieval to a specific snapshot instead of the
	// latest completed one.
	IndexID   string    `json:"index_id,omitempty"`
	Language  string    `json:"language,omitempty"`
	ChunkType ChunkType `json:"chunk_type,omitempty"`
	FilePaths []string  `json:"file_paths,omitempty"`
}

// IsZero reports whether the filter constrains nothing.
func (f RetrievalFilter) IsZero() bool {
	return f.IndexID == "" && f.Language == "" && f.ChunkType == "" && len(f.FilePaths) == 0
}
