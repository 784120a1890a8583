package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/portfolio-import/internal/app"
	"github.com/JonMunkholm/portfolio-import/internal/config"
	"github.com/JonMunkholm/portfolio-import/internal/logging"
	"github.com/JonMunkholm/portfolio-import/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("store ready", "driver", cfg.Store.Driver)

	service := app.NewService(cfg, store, logger)
	server := web.NewServer(service, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first, then let running imports commit or roll back.
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		if status := service.LimiterStatus(); status.Active > 0 {
			logger.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				logger.Warn("imports did not complete in time", "error", err)
			} else {
				logger.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}
