package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestCache creates a miniredis-backed EmbeddingCache.
func setupTestCache(t *testing.T) (*EmbeddingCache, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewEmbeddingCache(client, time.Hour)

	return cache, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestEmbeddingCache_SetGet(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	vector := []float32{0.1, 0.2, 0.3}
	if err := cache.Set(ctx, "func main() {}", vector); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := cache.Get(ctx, "func main() {}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(vector) {
		t.Fatalf("expected %d dims, got %d", len(vector), len(got))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("dim %d: expected %f, got %f", i, vector[i], got[i])
		}
	}
}

func TestEmbeddingCache_GetMiss(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	got, err := cache.Get(context.Background(), "never stored")
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil vector on miss, got %v", got)
	}
}

func TestEmbeddingCache_ContentAddressed(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	// Same text from different call sites resolves the same entry.
	_ = cache.Set(ctx, "shared content", []float32{1})
	got, err := cache.Get(ctx, "shared content")
	if err != nil || got == nil {
		t.Fatalf("expected hit, got %v (err %v)", got, err)
	}

	other, err := cache.Get(ctx, "shared content ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != nil {
		t.Errorf("whitespace variant must not share an entry")
	}
}

func TestEmbeddingCache_MGetMixed(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	_ = cache.Set(ctx, "cached-a", []float32{1, 2})
	_ = cache.Set(ctx, "cached-b", []float32{3, 4})

	got, err := cache.MGet(ctx, []string{"cached-a", "missing", "cached-b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0] == nil || got[2] == nil {
		t.Errorf("expected hits at positions 0 and 2")
	}
	if got[1] != nil {
		t.Errorf("expected miss at position 1, got %v", got[1])
	}
}

func TestEmbeddingCache_MSet(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	texts := []string{"one", "two"}
	vectors := [][]float32{{1}, {2}}
	if err := cache.MSet(ctx, texts, vectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, text := range texts {
		got, err := cache.Get(ctx, text)
		if err != nil || got == nil {
			t.Fatalf("expected hit for %q, got %v (err %v)", text, got, err)
		}
		if got[0] != vectors[i][0] {
			t.Errorf("wrong vector for %q", text)
		}
	}

	if err := cache.MSet(ctx, []string{"one"}, vectors); err == nil {
		t.Errorf("expected length mismatch error")
	}
}

func TestEmbeddingCache_TTL(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	_ = cache.Set(ctx, "expiring", []float32{1})
	mr.FastForward(2 * time.Hour)

	got, err := cache.Get(ctx, "expiring")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected entry expired after TTL")
	}
}

func TestEmbeddingCache_Delete(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	_ = cache.Set(ctx, "doomed", []float32{1})
	if err := cache.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := cache.Get(ctx, "doomed")
	if got != nil {
		t.Errorf("expected entry gone after delete")
	}
}

func TestEmbeddingCache_Stats(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	_ = cache.Set(ctx, "hit me", []float32{1})
	_, _ = cache.Get(ctx, "hit me")
	_, _ = cache.Get(ctx, "miss one")
	_, _ = cache.Get(ctx, "miss two")

	stats := cache.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("expected 2 misses, got %d", stats.Misses)
	}
	if rate := stats.HitRate(); rate < 0.33 || rate > 0.34 {
		t.Errorf("expected hit rate ~0.333, got %f", rate)
	}

	cache.ResetStats()
	stats = cache.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}

func TestEmbeddingCache_GetAfterBackendGone(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	_ = cache.Set(ctx, "text", []float32{1})
	mr.Close()

	got, err := cache.Get(ctx, "text")
	if err == nil {
		t.Fatalf("expected error once backend is unreachable")
	}
	if got != nil {
		t.Errorf("expected nil vector with error")
	}
}
