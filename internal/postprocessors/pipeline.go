package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// PostProcessor filters a chunk set between chunking and embedding.
// Processors may drop chunks but never rewrite content: chunk content
// stays an exact substring of its source file.
type PostProcessor interface {
	// Name identifies the processor in logs and pipeline listings.
	Name() string

	// Order determines processing position. Lower runs first.
	Order() int

	// Process returns the surviving chunks.
	Process(chunks []*domain.Chunk) []*domain.Chunk
}

// Pipeline chains post-processors in Order() sequence.
type Pipeline struct {
	mu         sync.RWMutex
	processors []PostProcessor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]PostProcessor, 0),
	}
}

// DefaultPipeline returns the pipeline applied by the indexer: blank
// chunks dropped, oversize chunks discarded before they hit the
// embedding provider.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(&DropBlank{})
	p.Add(&OversizeGuard{MaxBytes: DefaultMaxChunkBytes})
	return p
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
func (p *Pipeline) Process(chunks []*domain.Chunk) []*domain.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}
	return chunks
}

// List returns processor names in processing order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	processors := make([]PostProcessor, len(p.processors))
	copy(processors, p.processors)
	sort.SliceStable(processors, func(i, j int) bool {
		return processors[i].Order() < processors[j].Order()
	})

	names := make([]string, len(processors))
	for i, proc := range processors {
		names[i] = proc.Name()
	}
	return names
}

// DropBlank removes chunks whose content is empty or whitespace only.
// Embedding them wastes tokens and they can never be a useful result.
type DropBlank struct{}

func (d *DropBlank) Name() string { return "drop_blank" }
func (d *DropBlank) Order() int   { return 10 }

func (d *DropBlank) Process(chunks []*domain.Chunk) []*domain.Chunk {
	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// DefaultMaxChunkBytes is sized under the embedding provider's input
// limit (roughly 8k tokens at ~4 bytes per token).
const DefaultMaxChunkBytes = 32 * 1024

// OversizeGuard drops chunks the chunker failed to bound. The chunker
// splits oversize constructs itself; anything still above MaxBytes
// would be rejected by the embedding provider.
type OversizeGuard struct {
	MaxBytes int
}

func (g *OversizeGuard) Name() string { return "oversize_guard" }
func (g *OversizeGuard) Order() int   { return 20 }

func (g *OversizeGuard) Process(chunks []*domain.Chunk) []*domain.Chunk {
	maxBytes := g.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}
	out := chunks[:0]
	for _, chunk := range chunks {
		if len(chunk.Content) > maxBytes {
			continue
		}
		out = append(out, chunk)
	}
	return out
}
