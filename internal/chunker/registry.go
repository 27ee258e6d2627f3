package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// LanguageSpec defines the tree-sitter grammar and query for a language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query capturing top-level
	// definitions. It must use @chunk for the outer node and @name for
	// the identifier (optional). When @chunk is a wrapper such as an
	// export statement, @kind marks the inner definition whose node
	// type determines the chunk type.
	Query string
	// Kinds maps tree-sitter node types to chunk types. Node types not
	// listed default to function.
	Kinds      map[string]domain.ChunkType
	Extensions []string
}

// KindOf returns the chunk type for a tree-sitter node type.
func (s *LanguageSpec) KindOf(nodeType string) domain.ChunkType {
	if t, ok := s.Kinds[nodeType]; ok {
		return t
	}
	return domain.ChunkTypeFunction
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) -> spec
	names map[string]string        // extension -> language name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
		names: make(map[string]string),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
		r.names[ext] = name
	}
}

// RegisterName maps extensions to a language name without structural
// parsing support (fallback chunking only).
func (r *Registry) RegisterName(name string, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		if _, exists := r.names[ext]; !exists {
			r.names[ext] = name
		}
	}
}

// Lookup returns the structural spec for a file path, or nil when the
// language has no registered grammar.
func (r *Registry) Lookup(path string) *LanguageSpec {
	ext := extOf(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// LanguageName returns the language for a file path, defaulting to "text"
// for unrecognized extensions.
func (r *Registry) LanguageName(path string) string {
	ext := extOf(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[ext]; ok {
		return name
	}
	return "text"
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.names))
	for ext := range r.names {
		exts[ext] = true
	}
	return exts
}

func extOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
