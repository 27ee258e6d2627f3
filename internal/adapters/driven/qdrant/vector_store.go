package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore against the Qdrant REST API.
// The collection is created lazily with cosine distance.
type VectorStore struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

// Config holds Qdrant connection configuration
type Config struct {
	// BaseURL is the Qdrant endpoint (e.g., http://localhost:6333)
	BaseURL string

	// APIKey is sent as the api-key header when set
	APIKey string

	// Collection is the points collection name
	Collection string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Collection: "code_chunks",
		Timeout:    30 * time.Second,
	}
}

// NewVectorStore creates a new Qdrant-backed VectorStore
func NewVectorStore(cfg Config) *VectorStore {
	collection := cfg.Collection
	if collection == "" {
		collection = "code_chunks"
	}
	return &VectorStore{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// qdrantFilter is the wire form of a VectorFilter.
type qdrantFilter struct {
	Must []qdrantCondition `json:"must,omitempty"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Value any   `json:"value,omitempty"`
	Any   []any `json:"any,omitempty"`
}

// toQdrantFilter translates the port filter. Must entries become exact
// matches; the Any group becomes a match/any condition ANDed with them.
func toQdrantFilter(filter *driven.VectorFilter) *qdrantFilter {
	if filter == nil {
		return nil
	}
	var out qdrantFilter
	for key, value := range filter.Must {
		out.Must = append(out.Must, qdrantCondition{
			Key:   key,
			Match: qdrantMatch{Value: value},
		})
	}
	if filter.AnyField != "" && len(filter.AnyValues) > 0 {
		out.Must = append(out.Must, qdrantCondition{
			Key:   filter.AnyField,
			Match: qdrantMatch{Any: filter.AnyValues},
		})
	}
	if len(out.Must) == 0 {
		return nil
	}
	return &out
}

// EnsureCollection creates the collection if missing.
func (s *VectorStore) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid vector dimensions %d", dimensions)
	}

	status, _, err := s.do(ctx, http.MethodGet, "/collections/"+s.collection, nil)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	status, data, err := s.do(ctx, http.MethodPut, "/collections/"+s.collection, body)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("create collection: status %d: %s", status, string(data))
	}
	return nil
}

// Upsert inserts or replaces points by id.
func (s *VectorStore) Upsert(ctx context.Context, points []driven.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}

	status, data, err := s.do(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", map[string]any{"points": wire})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("upsert points: status %d: %s", status, string(data))
	}
	return nil
}

// Search returns up to k matches meeting scoreThreshold, best first.
func (s *VectorStore) Search(ctx context.Context, vector []float32, k int, filter *driven.VectorFilter, scoreThreshold float64) ([]driven.VectorMatch, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if qf := toQdrantFilter(filter); qf != nil {
		body["filter"] = qf
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}

	status, data, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("search points: status %d: %s", status, string(data))
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]driven.VectorMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, driven.VectorMatch{
			ID:      idToString(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return matches, nil
}

// DeleteByFilter removes all points matching the filter.
func (s *VectorStore) DeleteByFilter(ctx context.Context, filter *driven.VectorFilter) error {
	qf := toQdrantFilter(filter)
	if qf == nil {
		return fmt.Errorf("refusing to delete with an empty filter")
	}

	status, data, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", map[string]any{"filter": qf})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("delete points: status %d: %s", status, string(data))
	}
	return nil
}

// DeleteByIDs removes points by id.
func (s *VectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	status, data, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", map[string]any{"points": ids})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("delete points: status %d: %s", status, string(data))
	}
	return nil
}

// Count returns the number of points matching the filter.
func (s *VectorStore) Count(ctx context.Context, filter *driven.VectorFilter) (int, error) {
	body := map[string]any{"exact": true}
	if qf := toQdrantFilter(filter); qf != nil {
		body["filter"] = qf
	}

	status, data, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/count", body)
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	if status >= 300 {
		return 0, fmt.Errorf("count points: status %d: %s", status, string(data))
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return resp.Result.Count, nil
}

// Scroll pages through points matching the filter.
func (s *VectorStore) Scroll(ctx context.Context, filter *driven.VectorFilter, limit int, offset string) (*driven.ScrollPage, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf := toQdrantFilter(filter); qf != nil {
		body["filter"] = qf
	}
	if offset != "" {
		body["offset"] = offset
	}

	status, data, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/scroll", body)
	if err != nil {
		return nil, fmt.Errorf("scroll points: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("scroll points: status %d: %s", status, string(data))
	}

	var resp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode scroll response: %w", err)
	}

	page := &driven.ScrollPage{}
	for _, p := range resp.Result.Points {
		page.Points = append(page.Points, driven.VectorPoint{
			ID:      idToString(p.ID),
			Payload: p.Payload,
		})
	}
	if resp.Result.NextPageOffset != nil {
		page.NextOffset = idToString(resp.Result.NextPageOffset)
	}
	return page, nil
}

// HealthCheck verifies the Qdrant instance is reachable.
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	status, _, err := s.do(ctx, http.MethodGet, "/readyz", nil)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", status)
	}
	return nil
}

// do executes one request and returns status and body.
func (s *VectorStore) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// idToString normalizes Qdrant point ids, which may come back as
// strings or numbers.
func idToString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
