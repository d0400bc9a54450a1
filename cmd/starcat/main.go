// main.go - HTTP server application
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"loadcheck/internal/config"
	"loadcheck/internal/starcat"
)

func main() {
	cfg := config.GetConfig()

	// Diagnostics (including worker readiness markers) go to stderr; the
	// access log owns stdout.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))

	app := starcat.NewApp(cfg, logger, os.Stdout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("shutdown complete")
	}
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
