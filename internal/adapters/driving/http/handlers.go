package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/custodia-labs/coderag-core/internal/core/domain"
)

// SearchRequest is the body of POST /api/v1/search
type SearchRequest struct {
	Query          string                 `json:"query"`
	Queries        []string               `json:"queries,omitempty"` // multi-query semantic retrieval
	ProjectID      string                 `json:"project_id"`
	Mode           string                 `json:"mode,omitempty"` // semantic (default) or hybrid
	TopK           int                    `json:"top_k,omitempty"`
	Rerank         bool                   `json:"rerank,omitempty"`
	ScoreThreshold float64                `json:"score_threshold,omitempty"`
	Filter         domain.RetrievalFilter `json:"filter,omitempty"`
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	Results []domain.RetrievalResult `json:"results"`
	Count   int                      `json:"count"`
}

// CreateIndexRequest is the body of POST /api/v1/indexes
type CreateIndexRequest struct {
	ProjectID string `json:"project_id"`
	Repo      string `json:"repo"`
	Ref       string `json:"ref"`
}

// UpdateIndexRequest is the body of PUT /api/v1/indexes/{id}
type UpdateIndexRequest struct {
	Ref     string              `json:"ref"`
	Changes *domain.FileChanges `json:"changes"`
}

// TaskResponse acknowledges an enqueued indexing run
type TaskResponse struct {
	TaskID string            `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
}

const (
	defaultTopK = 10
	maxTopK     = 100
)

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Pinger{
		"postgres": s.db,
		"redis":    s.redisClient,
		"qdrant":   s.vectorStore,
	}

	for name, pinger := range checks {
		if pinger == nil {
			continue
		}
		if err := pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "component", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":    "unavailable",
				"component": name,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Search

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if req.Query == "" && len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	var (
		results []domain.RetrievalResult
		err     error
	)

	switch {
	case len(req.Queries) > 0:
		results, err = s.retrievalService.RetrieveMultiple(r.Context(), req.Queries, req.ProjectID, topK)
	case req.Mode == "hybrid":
		results, err = s.hybridService.Retrieve(r.Context(), req.Query, req.ProjectID, topK, req.Filter)
	default:
		results, err = s.retrievalService.Retrieve(r.Context(), req.Query, req.ProjectID, topK, req.Filter, req.ScoreThreshold)
	}
	if err != nil {
		writeDomainError(w, err, "search failed")
		return
	}

	if req.Rerank && s.reranker != nil {
		results = s.reranker.Rerank(r.Context(), req.Query, results, topK)
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}

// Indexes

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req CreateIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProjectID == "" || req.Repo == "" || req.Ref == "" {
		writeError(w, http.StatusBadRequest, "project_id, repo and ref are required")
		return
	}

	task := domain.NewFullIndexTask(uuid.NewString(), req.ProjectID, req.Repo, req.Ref)
	if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
		s.logger.Error("enqueue index task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue indexing run")
		return
	}

	writeJSON(w, http.StatusAccepted, TaskResponse{
		TaskID: task.ID,
		Status: task.Status,
	})
}

func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	index, err := s.indexingService.GetIndex(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get index")
		return
	}

	writeJSON(w, http.StatusOK, index)
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	indexes, err := s.indexingService.ListIndexes(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err, "failed to list indexes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"indexes": indexes,
		"count":   len(indexes),
	})
}

func (s *Server) handleUpdateIndex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}
	if req.Changes == nil || req.Changes.IsEmpty() {
		writeError(w, http.StatusBadRequest, "changes are required")
		return
	}

	// The index must exist before a run is queued for it.
	if _, err := s.indexingService.GetIndex(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to get index")
		return
	}

	task := domain.NewIncrementalTask(uuid.NewString(), id, req.Ref, req.Changes)
	if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
		s.logger.Error("enqueue update task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue indexing run")
		return
	}

	writeJSON(w, http.StatusAccepted, TaskResponse{
		TaskID: task.ID,
		Status: task.Status,
	})
}

// Tasks

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := s.taskQueue.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.logger.Error("queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get queue stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoCompletedIndex):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrIndexStatusTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
