package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/custodia-labs/coderag-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	retrievalService driving.RetrievalService
	hybridService    driving.HybridRetrievalService
	reranker         driving.Reranker
	indexingService  driving.IndexingService

	// Infrastructure
	authAdapter driven.AuthAdapter
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
	vectorStore Pinger // vector store health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	retrievalService driving.RetrievalService,
	hybridService driving.HybridRetrievalService,
	reranker driving.Reranker,
	indexingService driving.IndexingService,
	authAdapter driven.AuthAdapter,
	taskQueue driven.TaskQueue,
	db Pinger,
	redisClient Pinger, // can be nil
	vectorStore Pinger, // can be nil
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		logger:           logger,
		retrievalService: retrievalService,
		hybridService:    hybridService,
		reranker:         reranker,
		indexingService:  indexingService,
		authAdapter:      authAdapter,
		taskQueue:        taskQueue,
		db:               db,
		redisClient:      redisClient,
		vectorStore:      vectorStore,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authAdapter)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Search endpoint (authenticated)
	s.router.Handle("POST /api/v1/search",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSearch)))

	// Index endpoints (authenticated)
	s.router.Handle("POST /api/v1/indexes",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCreateIndex)))
	s.router.Handle("GET /api/v1/indexes",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListIndexes)))
	s.router.Handle("GET /api/v1/indexes/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetIndex)))
	s.router.Handle("PUT /api/v1/indexes/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUpdateIndex)))

	// Task endpoints (authenticated)
	s.router.Handle("GET /api/v1/tasks/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetTask)))
	s.router.Handle("GET /api/v1/queue/stats",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleQueueStats)))
}

// Handler returns the server's root handler, wrapped with logging and
// panic recovery.
func (s *Server) Handler() http.Handler {
	recovery := NewRecoveryMiddleware(s.logger)
	logging := NewLoggingMiddleware(s.logger)
	return recovery.Handler(logging.Handler(s.router))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	s.httpServer.Handler = s.Handler()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
