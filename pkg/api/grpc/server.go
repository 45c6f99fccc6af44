// Package grpc exposes the standard gRPC health service, reporting the
// health of the run executor pool.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name of the orchestrator.
const ServiceName = "aerodoc.Orchestrator"

// HealthChecker reports whether runs can be executed.
// *workers.HealthMonitor satisfies it.
type HealthChecker interface {
	IsHealthy() bool
}

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	checker  HealthChecker
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Config holds gRPC server configuration
type Config struct {
	Port int
	// Listener overrides Port when set.
	Listener net.Listener
	Health   HealthChecker
	// CheckInterval is how often the serving status is refreshed.
	CheckInterval time.Duration
	Logger        *zap.Logger
}

// NewServer creates a new gRPC server
func NewServer(cfg *Config) (*Server, error) {
	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to create listener: %w", err)
		}
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		checker:  cfg.Health,
		interval: interval,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
	}
	s.refresh()

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start starts the gRPC server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("gRPC shutdown timeout: %w", ctx.Err())
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// watch keeps the serving status in line with the pool health
func (s *Server) watch() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil && !s.checker.IsHealthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
