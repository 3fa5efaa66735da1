// Package server wires the HTTP surface: routing, middleware and graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apiloghttp "seabridge/ms_odex_gateway/internal/adapters/http/apilog"
	authhttp "seabridge/ms_odex_gateway/internal/adapters/http/auth"
	form13http "seabridge/ms_odex_gateway/internal/adapters/http/form13"
	healthhttp "seabridge/ms_odex_gateway/internal/adapters/http/health"
	vgmhttp "seabridge/ms_odex_gateway/internal/adapters/http/vgm"
	"seabridge/ms_odex_gateway/internal/infrastructure/config"
	"seabridge/ms_odex_gateway/internal/infrastructure/http/middleware"
)

// Handlers groups the adapters mounted on the router. Metrics may be nil,
// in which case the /metrics endpoint is not exposed.
type Handlers struct {
	Vgm     *vgmhttp.Handler
	Form13  *form13http.Handler
	Auth    *authhttp.Handler
	ApiLogs *apiloghttp.Handler
	Health  *healthhttp.Handler
	Metrics http.Handler
}

// Options holds everything needed to build the server.
type Options struct {
	Config   config.AppConfig
	Logger   *slog.Logger
	Handlers Handlers
}

// Server owns the http.Server lifecycle.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
	shutdown   config.HTTPSettings
}

// New builds the router and the underlying http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	h := opts.Handlers
	if h.Vgm == nil || h.Form13 == nil || h.Auth == nil || h.ApiLogs == nil || h.Health == nil {
		return nil, errors.New("all route handlers are required")
	}

	authenticator, err := middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(authenticator.Middleware)

	r.Get("/health", h.Health.Status)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Everything under here dispatches a carrier call and gets the
		// extended deadline; the query surface keeps the default.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ForwardTimeout(opts.Config.HTTP))

			r.Post("/vgm", h.Vgm.Submit)
			r.Post("/vgm/status", h.Vgm.Status)
			r.Post("/vgm/{logId}/resubmit", h.Vgm.Resubmit)
			r.Post("/form13", h.Form13.Submit)
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/logs/{id}/edit", h.ApiLogs.Edit)
			r.Put("/logs/{id}", h.ApiLogs.FullUpdate)
		})

		r.Get("/logs", h.ApiLogs.List)
		r.Get("/logs/stats", h.ApiLogs.Stats)
		r.Get("/logs/module/{module}", h.ApiLogs.ListByModule)
		r.Get("/logs/{id}", h.ApiLogs.GetByID)
	})

	// The server-wide write timeout must cover the slowest route class,
	// otherwise carrier calls get cut off mid-flight.
	writeTimeout := opts.Config.HTTP.WriteTimeout
	if opts.Config.HTTP.ForwardTimeout > writeTimeout {
		writeTimeout = opts.Config.HTTP.ForwardTimeout
	}

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{
		log:        opts.Logger,
		httpServer: srv,
		auth:       authenticator,
		shutdown:   opts.Config.HTTP,
	}, nil
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		s.log.Info("HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the server's middleware.
func (s *Server) Close() {
	if s.auth != nil {
		s.auth.Close()
	}
}
