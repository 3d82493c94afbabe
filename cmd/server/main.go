// Package main is the entry point for the chatboard server. It loads
// configuration, opens the configured storage backend, wires the board and
// starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/keyxmakerx/chatboard/internal/app"
	"github.com/keyxmakerx/chatboard/internal/config"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting chatboard",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("backend", cfg.Backend),
		slog.Bool("spam_guard", cfg.SpamGuard.Enabled),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	backends, err := app.OpenBackends(ctx, cfg)
	cancel()
	if err != nil {
		slog.Error("failed to open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer backends.Close()

	application, err := app.New(cfg, backends)
	if err != nil {
		slog.Error("failed to create application", slog.Any("error", err))
		os.Exit(1)
	}
	application.RegisterRoutes()

	// Drain in-flight requests on SIGINT/SIGTERM.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger. Development uses text at
// debug level, production uses JSON at info. LOG_LEVEL overrides the level.
func setupLogging(cfg *config.Config) {
	level := logLevel(cfg)

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}

// logLevel picks the environment's default level, replaced by LOG_LEVEL
// when that names a valid level.
func logLevel(cfg *config.Config) slog.Level {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
			slog.Warn("ignoring invalid LOG_LEVEL", slog.String("value", cfg.LogLevel))
		}
	}
	return level
}
