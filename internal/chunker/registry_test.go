package chunker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coderag-core/internal/chunker"
	"github.com/custodia-labs/coderag-core/internal/chunker/languages"
	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	spec := r.Lookup("pkg/server/handler.go")
	require.NotNil(t, spec)
	assert.NotNil(t, spec.Language)
	assert.NotEmpty(t, spec.Query)
	assert.Equal(t, "go", r.LanguageName("pkg/server/handler.go"))

	assert.NotNil(t, r.Lookup("src/app.ts"))
	assert.NotNil(t, r.Lookup("src/app.jsx"))
	assert.NotNil(t, r.Lookup("scripts/load.py"))
}

func TestRegistry_LookupCaseInsensitive(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	assert.NotNil(t, r.Lookup("Main.GO"))
	assert.Equal(t, "go", r.LanguageName("Main.GO"))
}

func TestRegistry_UnknownExtension(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	assert.Nil(t, r.Lookup("notes.xyz"))
	assert.Equal(t, "text", r.LanguageName("notes.xyz"))
	assert.Equal(t, "text", r.LanguageName("Makefile"))
}

func TestRegistry_RegisterNameFallbackOnly(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	// Languages without grammars still get a name for metadata.
	assert.Equal(t, "java", r.LanguageName("App.java"))
	assert.Nil(t, r.Lookup("App.java"))
	assert.Equal(t, "sql", r.LanguageName("migrations/001_init.sql"))
}

func TestRegistry_RegisterNameDoesNotOverride(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	r.RegisterName("golang", "go")
	assert.Equal(t, "go", r.LanguageName("main.go"))
}

func TestRegistry_Extensions(t *testing.T) {
	r := chunker.NewRegistry()
	languages.RegisterAll(r)

	exts := r.Extensions()
	for _, ext := range []string{"go", "py", "ts", "js", "java", "md", "yaml"} {
		assert.True(t, exts[ext], "expected extension %q to be registered", ext)
	}
	assert.False(t, exts["exe"])
}

func TestLanguageSpec_KindOf(t *testing.T) {
	spec := &chunker.LanguageSpec{
		Kinds: map[string]domain.ChunkType{
			"type_declaration": domain.ChunkTypeClass,
		},
	}

	assert.Equal(t, domain.ChunkTypeClass, spec.KindOf("type_declaration"))
	assert.Equal(t, domain.ChunkTypeFunction, spec.KindOf("function_declaration"))
}
