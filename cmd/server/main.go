package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/osfidash/internal/config"
	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/history"
	"github.com/JonMunkholm/osfidash/internal/logging"
	"github.com/JonMunkholm/osfidash/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if cfg.Dataset.SchemaFile != "" {
		if err := core.LoadSchemaFile(cfg.Dataset.SchemaFile); err != nil {
			return err
		}
		slog.Info("entity schemas loaded", "file", cfg.Dataset.SchemaFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, cfg.History.DSN, cfg.History.Limit)
	if err != nil {
		return err
	}

	core.LoadTimeout = cfg.Upload.Timeout
	service := core.NewService(core.Options{
		DataFile:      cfg.Dataset.File,
		Discriminator: cfg.Dataset.Discriminator,
		Encoding:      cfg.Dataset.Encoding,
		MaxFileSize:   cfg.Upload.MaxFileSize,
		Limiter:       core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Sessions:      core.NewSessionStore(cfg.Session.TTL, cfg.Dataset.DefaultPageSize),
		History:       store,
	})
	defer func() {
		if err := service.Close(); err != nil {
			slog.Warn("closing history store", "error", err)
		}
	}()

	// A bad startup file is logged, not fatal: the UI can still take an upload.
	if cfg.Dataset.File != "" {
		if _, err := service.Reload(ctx); err != nil {
			slog.Error("initial dataset load failed", "file", cfg.Dataset.File, "error", err)
		}
	}

	server := web.NewServer(service, *cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		service.Sessions().StartSweeper(gctx, cfg.Session.SweepInterval)
		return nil
	})

	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown on signal or when the listener fails.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.UploadStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
