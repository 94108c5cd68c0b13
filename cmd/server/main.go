package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/facturaIA/invoice-extraction-service/api"
	"github.com/facturaIA/invoice-extraction-service/internal/auth"
	"github.com/facturaIA/invoice-extraction-service/internal/db"
	"github.com/facturaIA/invoice-extraction-service/internal/engine"
	"github.com/facturaIA/invoice-extraction-service/internal/logging"
	"github.com/facturaIA/invoice-extraction-service/internal/metrics"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/storage"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	config, err := models.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(config.Log.Level, config.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(config *models.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth.Init(config.Auth.JWTSecret)
	if auth.Enabled() {
		logger.Info("JWT authentication enabled")
	} else {
		logger.Warn("JWT_SECRET not set, requests run as the default tenant")
	}

	// Database and storage are optional; without them the service only extracts.
	if err := db.Init(ctx, config.Database.DSN(), logger); err != nil {
		logger.Warn("database not available, running in extraction-only mode", zap.Error(err))
	} else {
		defer db.Close()
	}

	if err := storage.Init(ctx, config.Storage); err != nil {
		logger.Warn("object storage not available, uploads will not be stored", zap.Error(err))
	} else {
		logger.Info("object storage initialized", zap.String("bucket", config.Storage.Bucket))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	eng, err := engine.NewFromConfig(config, logger, m)
	if err != nil {
		return fmt.Errorf("failed to build extraction engine: %w", err)
	}

	handler := api.NewHandler(config, eng, logger.Named("api"), registry)
	router := handler.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           auth.JWTMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting invoice extraction service",
		zap.String("version", api.Version),
		zap.String("addr", addr),
		zap.Strings("strategies", config.Extraction.Strategies),
		zap.String("vision_provider", config.AI.VisionProvider),
		zap.String("text_provider", config.AI.TextProvider),
		zap.Bool("database", db.Pool != nil),
		zap.Bool("storage", storage.Client != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
