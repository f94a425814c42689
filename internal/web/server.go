// Package web serves the flow dashboard: hydrograph images and latest
// readings grouped by river, one page per region.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/river-gage-etl/internal/config"
	"github.com/couchcryptid/river-gage-etl/internal/registry"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Server bundles the router and its dependencies.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	latest   LatestReader
	logger   *slog.Logger
	engine   *gin.Engine
}

// New constructs the dashboard server with routes and middleware.
func New(cfg *config.Config, reg *registry.Registry, latest LatestReader, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.SetHTMLTemplate(template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl")))

	s := &Server{cfg: cfg, registry: reg, latest: latest, logger: logger, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("dashboard shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/flows", s.handleIndex)
	s.engine.GET("/region/:region", s.handleRegion)
	s.engine.GET("/images/:file", s.handleImage)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "page.tmpl", buildPage(s.registry, s.latest, ""))
}

func (s *Server) handleRegion(c *gin.Context) {
	region := c.Param("region")
	if len(s.registry.ByRegion(region)) == 0 {
		c.String(http.StatusNotFound, "unknown region %s", region)
		return
	}
	c.HTML(http.StatusOK, "page.tmpl", buildPage(s.registry, s.latest, region))
}

// handleImage serves hydrograph images straight from the data directory.
func (s *Server) handleImage(c *gin.Context) {
	name := c.Param("file")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.Status(http.StatusBadRequest)
		return
	}
	c.File(filepath.Join(s.cfg.DataDir, name))
}
