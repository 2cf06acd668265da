package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vms-inventory/internal/config"
	"vms-inventory/internal/database"
	"vms-inventory/internal/logger"
	"vms-inventory/internal/observability"
	"vms-inventory/internal/server"
)

func gracefulShutdown(apiServer *server.Server, shutdownTracing func(context.Context) error, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// In-flight transitions hold their order row until the IMS answers
	ctx, cancel := context.WithTimeout(context.Background(), apiServer.WriteTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.NewWithFile(cfg.Server.Env, cfg.Server.LogFile)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting VMS inventory API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("ims_base_url", cfg.IMS.BaseURL),
	)

	tp, shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.Otel)
	if err != nil {
		log.Fatal("Failed to set up tracing", zap.Error(err))
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}

	health := dbService.Health()
	log.Info("Database health check", zap.Any("health", health))

	if err := database.RunMigrations(dbService.DB(), "migrations", log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	srv, err := server.NewServer(cfg, log, dbService, tp)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, shutdownTracing, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
