// Package server provides the HTTP control surface: live settings,
// play/pause and per-zone scene, status and advance endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kiosk-player/internal/config"
	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/show"
	"kiosk-player/internal/template"
)

// Zones is the view of the running player the handlers need.
type Zones interface {
	Zones() []string
	ZoneInfo(id string) (template.Zone, error)
	Scene(ctx context.Context, id string) (show.Scene, error)
	Status(ctx context.Context, id string) (show.Status, error)
	Items(ctx context.Context, id string) ([]media.Item, error)
	Advance(ctx context.Context, id string) error
	Gesture(ctx context.Context, id string) error
}

// HealthChecker reports the state of a dependency, typically the
// settings database.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the services the routes are wired to. DB may be nil when
// persistence is disabled.
type Deps struct {
	Zones   Zones
	Store   *settings.Store
	DB      HealthChecker
	Version string
}

// Server represents the HTTP server
type Server struct {
	config config.ServerConfig
	deps   Deps
	router *gin.Engine
	server *http.Server
}

// New creates a server with its routes registered. Nothing listens until
// Start.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{config: cfg, deps: deps}
	s.setupRouter()

	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
	return s
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	s.router = gin.New()

	s.router.Use(RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")

	setupHealthRoutes(apiGroup, s.deps)
	setupSettingsRoutes(apiGroup, s.deps.Store)
	setupZoneRoutes(apiGroup, s.deps.Zones)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	logger.Log.Info().
		Str("host", s.config.Host).
		Int("port", s.config.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
