// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/necrotome/necrotome/internal/auth"
	"github.com/necrotome/necrotome/internal/observability"
	"github.com/necrotome/necrotome/internal/session"
	"github.com/necrotome/necrotome/internal/store"
)

// Config holds API server settings.
type Config struct {
	Addr          string
	SecureCookies bool
}

// Server is the public API server.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger
}

// NewServer wires the routes. The session store arrives as the swappable
// indirection so the middleware picks up the upgraded backing without a
// rebuild.
func NewServer(cfg Config, svc *auth.Service, sessions *session.Swappable, manager *store.Manager, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewHandlers(svc, sessions, manager, cfg.SecureCookies, logger)
	requireAuth := RequireAuth(svc, sessions, metrics, logger)

	engine.GET("/healthz", handlers.Healthz)

	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/login", handlers.Login)
		authGroup.GET("/me", requireAuth, handlers.Me)
		authGroup.POST("/logout", requireAuth, handlers.Logout)
	}

	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}
}

// Handler exposes the configured engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("api server started", "addr", s.cfg.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return oops.With("addr", s.cfg.Addr).Wrap(err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown_api_server").Wrap(err)
	}
	return nil
}
