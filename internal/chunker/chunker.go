package chunker

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Chunker = (*CodeChunker)(nil)

// CodeChunker splits file content into semantically bounded chunks.
// Files with a registered grammar go through structural extraction;
// everything else, and any file the parser cannot handle, goes through
// fixed-size line chunking. Chunk, not error, is the only outcome.
type CodeChunker struct {
	registry *Registry
	opts     driven.ChunkOptions
}

// New creates a chunker over the given registry.
func New(registry *Registry, opts driven.ChunkOptions) *CodeChunker {
	if opts.TargetSize <= 0 {
		opts = driven.DefaultChunkOptions()
	}
	return &CodeChunker{registry: registry, opts: opts}
}

// Chunk splits content into chunks in source order.
func (c *CodeChunker) Chunk(path string, content string) []*domain.Chunk {
	if content == "" {
		return nil
	}

	lang := c.registry.LanguageName(path)

	if spec := c.registry.Lookup(path); spec != nil {
		// Emptiness is an ordinary value here: a parse failure or a file
		// with no extractable constructs both route to the line fallback.
		chunks, err := c.structural(spec, path, lang, content)
		if err == nil && len(chunks) > 0 {
			return chunks
		}
	}

	return c.fallback(path, lang, content)
}

type capture struct {
	name      string
	nodeType  string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}

// structural parses the source with tree-sitter and extracts top-level
// functions, identifier-bound function expressions and class declarations.
func (c *CodeChunker) structural(spec *LanguageSpec, path, lang, content string) ([]*domain.Chunk, error) {
	src := []byte(content)

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode, kindNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "kind":
				// Wrapper nodes (export statements) carry the kind of
				// the definition they wrap, not their own.
				kindNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		nodeType := chunkNode.Type()
		if kindNode != nil {
			nodeType = kindNode.Type()
		}
		captures = append(captures, capture{
			name:      nameStr,
			nodeType:  nodeType,
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	captures = dedup(captures)

	chunks := make([]*domain.Chunk, 0, len(captures))
	for _, cap := range captures {
		chunkType := spec.KindOf(cap.nodeType)
		size := int(cap.endByte - cap.startByte)
		if c.oversized(chunkType, size) {
			// Oversized bodies are excluded from chunk-level embedding,
			// never truncated.
			continue
		}
		chunks = append(chunks, &domain.Chunk{
			FilePath:  path,
			Content:   string(src[cap.startByte:cap.endByte]),
			StartLine: cap.startLine,
			EndLine:   cap.endLine,
			Type:      chunkType,
			Language:  lang,
			Name:      cap.name,
			Metadata:  chunkMetadata(cap.name),
		})
	}

	return chunks, nil
}

func (c *CodeChunker) oversized(t domain.ChunkType, size int) bool {
	switch t {
	case domain.ChunkTypeClass:
		return size > c.opts.TargetSize*c.opts.ClassSizeMult
	default:
		return size > c.opts.TargetSize*c.opts.FuncSizeMult
	}
}

// dedup drops captures fully contained within a larger capture, keeping
// the outer node, and returns the survivors in source order.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	result := caps[:0]
	var lastEnd uint32
	for _, cap := range caps {
		if len(result) == 0 || cap.startByte >= lastEnd {
			result = append(result, cap)
			if cap.endByte > lastEnd {
				lastEnd = cap.endByte
			}
		}
	}
	return result
}

// fallback performs fixed-size line chunking: accumulate lines until the
// target size is reached, emit, reseed with an overlap window proportional
// to the configured character overlap, repeat until exhausted. A final
// partial chunk is always emitted, so any non-empty input yields at least
// one chunk and every input line is covered.
func (c *CodeChunker) fallback(path, lang, content string) []*domain.Chunk {
	lines := strings.Split(content, "\n")

	var chunks []*domain.Chunk
	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			size += len(lines[end]) + 1
			end++
			if size >= c.opts.TargetSize {
				break
			}
		}

		chunks = append(chunks, &domain.Chunk{
			FilePath:  path,
			Content:   strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
			Type:      domain.ChunkTypeModule,
			Language:  lang,
		})

		if end >= len(lines) {
			break
		}

		overlap := overlapLines(c.opts.Overlap, size, end-start)
		start = end - overlap
	}

	return chunks
}

// overlapLines converts the character overlap into a line count using the
// emitted chunk's average line length, clamped to [0, chunkLines-1] so the
// window always advances.
func overlapLines(overlapChars, chunkChars, chunkLines int) int {
	if overlapChars <= 0 || chunkLines <= 1 {
		return 0
	}
	avg := chunkChars / chunkLines
	if avg < 1 {
		avg = 1
	}
	n := overlapChars / avg
	if n < 0 {
		n = 0
	}
	if n > chunkLines-1 {
		n = chunkLines - 1
	}
	return n
}

func chunkMetadata(name string) map[string]string {
	if name == "" {
		return nil
	}
	return map[string]string{"name": name}
}
