package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
	"github.com/aescanero/aerodoc/internal/application/workers"
)

// HealthChecker reports the health of the run executor pool.
// *workers.HealthMonitor satisfies it.
type HealthChecker interface {
	GetStatus() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator *orchestrator.Manager
	health       HealthChecker
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	// Health is optional; without it /health only reports the API itself.
	Health HealthChecker
	Logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		health:       cfg.Health,
		logger:       cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/questions", s.handleSubmitQuestion)
		v1.POST("/ask", s.handleAsk)
		v1.GET("/pipeline", s.handleGetPipeline)

		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/result", s.handleGetResult)
		v1.GET("/runs/:id/document", s.handleGetDocument)
		v1.GET("/runs/:id/context", s.handleGetContext)
		v1.POST("/runs/:id/cancel", s.handleCancelRun)
	}
}

// StreamHandler serves the live event stream of a run.
type StreamHandler interface {
	HandleRunStream(c *gin.Context)
}

// SetupWebSocket adds the run event stream endpoint
func (s *Server) SetupWebSocket(handler StreamHandler) {
	s.router.GET("/api/v1/runs/:id/ws", handler.HandleRunStream)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
