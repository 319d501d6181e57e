// Package main provides the entry point for the habitgraph API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/app"
	"github.com/thebtf/habitgraph/internal/config"
	"github.com/thebtf/habitgraph/internal/worker"
)

var Version = "dev"

// setLogLevel applies a configured level, keeping the current one when it does not parse.
func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("level", level).Msg("Unknown log level, keeping current")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", Version).
		Msg("Starting habitgraph")

	if err := config.EnsureAll(); err != nil {
		log.Warn().Err(err).Msg("Failed to create data directory or default settings")
	}
	cfg := config.Get()
	setLogLevel(cfg.LogLevel)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Open(openCtx, cfg)
	cancelOpen()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application context")
	}

	svc := worker.NewService(a)
	if err := svc.Start(cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start service")
	}

	// Only the log level is applied live; other settings need a restart.
	watcher, err := config.Watch(config.SettingsPath(), func() {
		next, err := config.Reload()
		if err != nil {
			log.Warn().Err(err).Msg("Settings reload failed")
			return
		}
		setLogLevel(next.LogLevel)
		log.Info().Str("level", next.LogLevel).Msg("Settings reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to watch settings file")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	if err := a.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Store close error")
	}

	log.Info().Msg("habitgraph shutdown complete")
}
