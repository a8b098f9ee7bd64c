// Package api exposes the catalog, the validator and validation runs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/worker"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, validator *rules.Validator, runner *worker.Runner, rulesFile, version string) *Server {
	handler := NewHandler(repo, cache, bus, validator, runner, rulesFile, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Catalog management and stateless validation are shared across tenants.
	router.Route("/rules", func(r chi.Router) {
		r.Get("/", handler.ListRules)
		r.Post("/", handler.CreateRule)
		r.Post("/reload", handler.ReloadRules)
		r.Get("/groups/{group}", handler.GetGroup)
		r.Get("/{metric}", handler.GetRule)
		r.Put("/{metric}", handler.UpdateRule)
		r.Delete("/{metric}", handler.DeleteRule)
	})

	router.Route("/validate", func(r chi.Router) {
		r.Post("/", handler.Validate)
		r.Post("/batch", handler.ValidateBatch)
		r.Post("/group/{group}", handler.ValidateGroup)
		r.Post("/all", handler.ValidateAll)
	})

	router.Post("/completeness", handler.Completeness)

	// Runs are stored per tenant.
	router.Route("/runs", func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Get("/", handler.ListRuns)
		r.Post("/", handler.CreateRun)
		r.Post("/async", handler.SubmitRun)
		r.Get("/{id}", handler.GetRun)
		r.Get("/{id}/results", handler.GetRunResults)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
