package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nguyentantai21042004/meeting-flow/internal/config"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

// Server is the HTTP surface of the application: upload intake, progress
// streaming, and context management endpoints.
type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	logger logger.Logger
}

// New assembles the echo instance, middleware, and routes.
func New(cfg config.ServerConfig, h *Handler, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))

	e.GET("/health", h.Health)
	e.POST("/initiate_processing", h.InitiateProcessing)
	e.GET("/stream_progress/:task_id", h.StreamProgress)
	e.POST("/save_context", h.SaveContext)
	e.GET("/get_context", h.GetContext)
	e.POST("/fetch_rag_context", h.FetchRAGContext)

	return &Server{echo: e, cfg: cfg, logger: log}
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	s.logger.Info(context.Background(), "HTTP server listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
