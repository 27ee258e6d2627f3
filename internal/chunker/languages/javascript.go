package languages

import (
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/custodia-labs/coderag-core/internal/chunker"
	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", &chunker.LanguageSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (identifier) @name) @chunk
			(export_statement (function_declaration name: (identifier) @name) @kind) @chunk
			(export_statement (class_declaration name: (identifier) @name) @kind) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (function_expression))) @chunk
			(variable_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
			(variable_declaration (variable_declarator name: (identifier) @name value: (function_expression))) @chunk
		`,
		Kinds: map[string]domain.ChunkType{
			"class_declaration": domain.ChunkTypeClass,
		},
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
	})
}
