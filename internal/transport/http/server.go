package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"bondtape/internal/config"
	"bondtape/internal/infrastructure"
	"bondtape/pkg/contracts"
)

// Server is the results API server.
type Server struct {
	logger *slog.Logger
	cfg    config.ServerConfig
	srv    *http.Server
}

// NewServer builds the server around a result store. The metrics handler is
// mounted at /metrics when non-nil.
func NewServer(
	logger *slog.Logger,
	cfg config.ServerConfig,
	store *ResultStore,
	metricsHandler http.Handler,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.WriteTimeout))
	r.Use(traceIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, contracts.GetVersionInfo())
	})
	r.Mount("/api/results", NewResultsHandler(store, logger).Routes())
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return &Server{
		logger: logger,
		cfg:    cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// traceIDMiddleware stamps a trace id onto each request context so handler
// log lines correlate per request.
func traceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(infrastructure.EnsureTraceID(r.Context())))
	})
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// swallowed so a clean Shutdown reports no error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("results server listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
