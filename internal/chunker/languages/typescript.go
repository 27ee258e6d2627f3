package languages

import (
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/custodia-labs/coderag-core/internal/chunker"
	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", &chunker.LanguageSpec{
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (type_identifier) @name) @chunk
			(export_statement (function_declaration name: (identifier) @name) @kind) @chunk
			(export_statement (class_declaration name: (type_identifier) @name) @kind) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (function_expression))) @chunk
		`,
		Kinds: map[string]domain.ChunkType{
			"class_declaration": domain.ChunkTypeClass,
		},
		Extensions: []string{"ts", "tsx"},
	})
}
