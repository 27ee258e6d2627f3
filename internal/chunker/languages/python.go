package languages

import (
	"github.com/smacker/go-tree-sitter/python"

	"github.com/custodia-labs/coderag-core/internal/chunker"
	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @chunk
			(class_definition name: (identifier) @name) @chunk
			(decorated_definition definition: (function_definition name: (identifier) @name)) @chunk
			(decorated_definition definition: (class_definition name: (identifier) @name)) @chunk
		`,
		Kinds: map[string]domain.ChunkType{
			"class_definition": domain.ChunkTypeClass,
		},
		Extensions: []string{"py", "pyi"},
	})
}
