package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/api"
	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/logging"
	"argus-pipeline-go/internal/services"
)

// @title Argus Pipeline API
// @version 1.0.0
// @description Detection event pipeline: AI descriptions, alert rules and webhook delivery
// @BasePath /
func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs to the embedded Logdy web UI
	if cfg.LogdyEnabled {
		if logdyWriter, url, lerr := logging.StartLogdy(cfg); lerr == nil {
			multi := io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, logdyWriter)
			log.Logger = log.Output(multi)
			log.Info().Str("url", url).Msg("Log tee to Logdy enabled")
		} else {
			log.Warn().Err(lerr).Msg("Failed to start Logdy, console only")
		}
	}

	mainLog := logging.NewServiceLogger(cfg, "worker")
	mainLog.Info().
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("workers", cfg.Workers()).
		Msg("Starting Argus pipeline worker")

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	server := api.NewServer(cfg, container)
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up API server")
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("API server forced to shutdown")
	}
	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Service shutdown incomplete")
	} else {
		mainLog.Info().Msg("Shutdown complete")
	}
}
