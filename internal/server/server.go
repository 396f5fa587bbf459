// Package server exposes ingestion, retrieval and chat over HTTP and a
// websocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/gate"
	"github.com/ziadkadry99/hostkb/internal/indexer"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/retriever"
	"github.com/ziadkadry99/hostkb/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool          // allow all CORS origins (dev mode)
	RequestTimeout time.Duration // 0 means 60s
}

// Ingester adds and removes documents.
type Ingester interface {
	Ingest(ctx context.Context, req indexer.IngestRequest) (*indexer.IngestResult, error)
	Delete(ctx context.Context, documentID int64) (*indexer.DeleteResult, error)
}

// DocumentReader reads document metadata.
type DocumentReader interface {
	Get(ctx context.Context, id int64) (*documents.Document, error)
	List(ctx context.Context, filter documents.ListFilter) ([]documents.Document, error)
}

// Searcher runs retrieval requests.
type Searcher interface {
	Retrieve(ctx context.Context, query string, opts retriever.Options) (*retriever.Response, error)
}

// Assistant answers chat messages.
type Assistant interface {
	Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Deps are the components the handlers call into. Any of them may be nil;
// the matching routes then answer 503.
type Deps struct {
	Pipeline          Ingester
	Documents         DocumentReader
	Retriever         Searcher
	Assistant         Assistant
	Sessions          *session.Store
	Gate              *gate.Gate
	RetrievalDefaults retriever.Options
}

// Server is the hostkb HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all routes registered.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)

	// Long-lived websocket connections must not inherit the request timeout.
	r.Get("/ws/chat", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Route("/api/documents", func(r chi.Router) {
			r.Post("/", s.handleIngest)
			r.Get("/", s.handleListDocuments)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})
		r.Post("/api/retrieve", s.handleRetrieve)
		r.Post("/api/chat", s.handleChat)
		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Get("/history", s.handleHistory)
			r.Delete("/", s.handleClearSession)
		})
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("hostkb server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Gate != nil {
		resp["gate"] = s.deps.Gate.Stats()
	}
	if s.deps.Sessions != nil {
		resp["sessions"] = s.deps.Sessions.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
