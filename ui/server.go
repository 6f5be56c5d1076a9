package ui

import (
	"context"
	"net/http"
	"time"

	"gogrid/app"
	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/internal/api"

	"github.com/gin-gonic/gin"
)

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	DefaultKey     core.GridKey
	MaxUploadBytes int64
}

// Server is the JSON + SSE API in front of the grid service
type Server struct {
	router *gin.Engine
	grids  *app.GridService
	hub    *api.SSEHub
	config ServerConfig
	logger *internal.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(grids *app.GridService, hub *api.SSEHub, config ServerConfig, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.DefaultKey == "" {
		config.DefaultKey = core.DefaultGridKey
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 5 << 20
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		router: router,
		grids:  grids,
		hub:    hub,
		config: config,
		logger: logger.With("Server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	apiGroup := s.router.Group("/api")
	apiGroup.POST("/compute", s.handleCompute)
	apiGroup.GET("/grids", s.handleListGrids)
	apiGroup.GET("/grid", s.handleDefaultGrid)

	grids := apiGroup.Group("/grids/:key", requireGridKey())
	grids.GET("", s.handleGetGrid)
	grids.PUT("", s.handleReplaceGrid)
	grids.DELETE("", s.handleDeleteGrid)
	grids.PUT("/cells/:cell", s.handleSetCell)
	grids.POST("/recompute", s.handleRecompute)
	grids.GET("/summary", s.handleSummary)
	grids.GET("/export.xlsx", s.handleExport)
	grids.POST("/import", s.handleImport)
	if s.hub != nil {
		grids.GET("/events", s.hub.HandleSSE)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting gogrid API on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}
