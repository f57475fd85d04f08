// Command fundapi serves an in-memory development instance of the project
// funding REST API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/handler"
	"github.com/AnTengye/civicfund/pkg/logger"
	"github.com/AnTengye/civicfund/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		slog.Warn("no jwt secret configured, tokens will not survive a restart")
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		slog.Error("failed to initialize document storage", "error", err)
		os.Exit(1)
	}

	store := service.NewStore(&cfg.Store)
	if err := store.SeedAuthorities(cfg.Authorities); err != nil {
		slog.Error("failed to seed authorities", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, store, blobs)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// loadConfig falls back to defaults and FUND_* variables when the file is absent
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return config.Default()
	}
	return cfg, err
}

// newBlobStore uses MinIO when an endpoint is configured
func newBlobStore(cfg *config.Config) (service.BlobStore, error) {
	if cfg.Minio.Endpoint == "" {
		slog.Info("no minio endpoint configured, keeping documents in memory")
		return service.NewMemoryBlobStore(cfg.Minio.Bucket), nil
	}

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	slog.Info("document storage ready", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	return minioSvc, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
