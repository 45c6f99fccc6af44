package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aescanero/aerodoc/internal/config"
	"github.com/aescanero/aerodoc/pkg/api/grpc"
	"github.com/aescanero/aerodoc/pkg/api/http"
	"github.com/aescanero/aerodoc/pkg/api/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, WebSocket and gRPC APIs",
	Long: `Starts the run executor pool and serves:
  - the REST API and Prometheus metrics on AERODOC_HTTP_PORT
  - live run progress over WebSocket on the same port
  - the gRPC health service on AERODOC_GRPC_PORT

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting aerodoc",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("store_backend", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	pool := a.newPool()
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: a.manager,
		Health:       pool.Health(),
		Logger:       logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(a.eventBus, a.manager, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Health: pool.Health(),
		Logger: logger,
	})
	if err != nil {
		_ = pool.Shutdown(context.Background())
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	logger.Info("aerodoc started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(grpcServer.Start)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
		if err := a.manager.Shutdown(shutdownCtx); err != nil {
			logger.Error("orchestrator shutdown error", zap.Error(err))
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("aerodoc shut down complete")
	return nil
}
