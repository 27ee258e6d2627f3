package languages

import (
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/custodia-labs/coderag-core/internal/chunker"
	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(method_declaration name: (field_identifier) @name) @chunk
			(type_declaration (type_spec name: (type_identifier) @name)) @chunk
		`,
		Kinds: map[string]domain.ChunkType{
			"type_declaration": domain.ChunkTypeClass,
		},
		Extensions: []string{"go"},
	})
}

// RegisterAll wires every supported grammar plus name-only mappings for
// languages chunked via the line fallback.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterPython(r)

	r.RegisterName("java", "java")
	r.RegisterName("ruby", "rb")
	r.RegisterName("rust", "rs")
	r.RegisterName("c", "c", "h")
	r.RegisterName("cpp", "cc", "cpp", "hpp")
	r.RegisterName("csharp", "cs")
	r.RegisterName("php", "php")
	r.RegisterName("markdown", "md")
	r.RegisterName("yaml", "yml", "yaml")
	r.RegisterName("json", "json")
	r.RegisterName("css", "css", "scss")
	r.RegisterName("html", "html")
	r.RegisterName("sql", "sql")
	r.RegisterName("shell", "sh", "bash")
}
