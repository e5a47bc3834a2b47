package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskpanel/internal/config"
	"taskpanel/internal/middleware"
)

// Registrar mounts a set of routes. Both the panel and the record store
// provide one.
type Registrar interface {
	Register(router *gin.RouterGroup)
}

type HTTPServer struct {
	name   string
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
}

// NewHTTPServer builds the shared middleware chain around routes. extra
// middleware runs after the common chain and before any handler.
func NewHTTPServer(name string, cfg *config.AppConfig, httpCfg config.HTTPConfig, log zerolog.Logger, routes Registrar, extra ...gin.HandlerFunc) *HTTPServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.RedirectFixedPath = true

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.AllowCORSOrigins),
	)
	engine.Use(extra...)

	routes.Register(engine.Group(""))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", httpCfg.Host, httpCfg.Port),
		Handler:      engine,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	return &HTTPServer{
		name:   name,
		engine: engine,
		server: srv,
		log:    log,
	}
}

// Handler exposes the engine for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("server", s.name).
		Str("addr", s.server.Addr).
		Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Str("server", s.name).Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
