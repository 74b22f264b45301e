// Package web serves the loader registry over HTTP: list the file loaders,
// run one against a CSV request body, and read back run history.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvload/internal/config"
	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/store/pgstore"
	"github.com/JonMunkholm/csvload/internal/web/middleware"
)

// History stores finished runs. *pgstore.History implements it.
type History interface {
	Record(ctx context.Context, res core.Result, runErr error) error
	Recent(ctx context.Context, key string, limit int) ([]pgstore.Run, error)
}

// Server is the HTTP server for the loader registry.
type Server struct {
	cfg      *config.Config
	registry *core.Registry
	history  History
	limiter  *core.RunLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer builds a Server. history may be nil, in which case runs are not
// recorded and the history endpoint reports that it is unavailable.
func NewServer(cfg *config.Config, registry *core.Registry, history History) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		history:  history,
		limiter:  core.NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Server.APIKeys))

		r.Get("/loaders", s.handleListLoaders)
		r.Get("/loaders/{key}", s.handleGetLoader)
		r.Post("/loaders/{key}/runs", s.handleRun)
		r.Get("/loaders/{key}/runs", s.handleRunHistory)

		// Run slots, for monitoring and for clients deciding when to retry
		r.Get("/runs/status", s.handleRunStatus)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "loaders", s.registry.Len())
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for running loads to
// release their slots.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
