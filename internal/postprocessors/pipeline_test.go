package postprocessors

import (
	"strings"
	"testing"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// orderRecorder records the order in which processors ran.
type orderRecorder struct {
	name  string
	order int
	log   *[]string
}

func (r *orderRecorder) Name() string { return r.name }
func (r *orderRecorder) Order() int   { return r.order }

func (r *orderRecorder) Process(chunks []*domain.Chunk) []*domain.Chunk {
	*r.log = append(*r.log, r.name)
	return chunks
}

func TestPipeline_RunsInOrder(t *testing.T) {
	var log []string
	p := NewPipeline()
	p.Add(&orderRecorder{name: "second", order: 20, log: &log})
	p.Add(&orderRecorder{name: "first", order: 10, log: &log})
	p.Add(&orderRecorder{name: "third", order: 30, log: &log})

	p.Process([]*domain.Chunk{{Content: "x"}})

	want := []string{"first", "second", "third"}
	for i, name := range want {
		if log[i] != name {
			t.Fatalf("expected order %v, got %v", want, log)
		}
	}
}

func TestPipeline_List(t *testing.T) {
	var log []string
	p := NewPipeline()
	p.Add(&orderRecorder{name: "b", order: 2, log: &log})
	p.Add(&orderRecorder{name: "a", order: 1, log: &log})

	names := p.List()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected listing: %v", names)
	}
}

func TestDropBlank(t *testing.T) {
	chunks := []*domain.Chunk{
		{ID: "c1", Content: "func main() {}"},
		{ID: "c2", Content: "   \n\t\n"},
		{ID: "c3", Content: ""},
		{ID: "c4", Content: "type T struct{}"},
	}

	got := (&DropBlank{}).Process(chunks)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].ID != "c1" || got[1].ID != "c4" {
		t.Errorf("unexpected survivors: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestOversizeGuard(t *testing.T) {
	chunks := []*domain.Chunk{
		{ID: "small", Content: "func main() {}"},
		{ID: "huge", Content: strings.Repeat("x", DefaultMaxChunkBytes+1)},
	}

	got := (&OversizeGuard{}).Process(chunks)
	if len(got) != 1 || got[0].ID != "small" {
		t.Fatalf("expected only the small chunk, got %d", len(got))
	}
}

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	names := p.List()
	if len(names) != 2 || names[0] != "drop_blank" || names[1] != "oversize_guard" {
		t.Fatalf("unexpected default pipeline: %v", names)
	}

	chunks := []*domain.Chunk{
		{ID: "keep", Content: "func main() {}"},
		{ID: "blank", Content: "  "},
		{ID: "huge", Content: strings.Repeat("x", DefaultMaxChunkBytes+1)},
	}

	got := p.Process(chunks)
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("expected only keep to survive, got %v", got)
	}
}
