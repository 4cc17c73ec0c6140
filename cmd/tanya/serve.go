package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/session"
	"github.com/hyperjump/tanya/internal/watcher"
	"github.com/hyperjump/tanya/internal/worker"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewRegistry(cfg.Server.SessionTTL, cfg.Server.MaxSessions, cfg.Memory.MaxTurns,
		session.WithLogger(logger))
	go sessions.Run(ctx, janitorInterval)

	pool := worker.NewPool(cfg.Server.Workers, cfg.Server.QueueSize, logger)
	defer pool.Stop()

	srv := server.NewServer(&cfg.Server, sessions, pool, logger)
	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		built, err := components.Indexer.EnsureIndex(ctx)
		if err != nil {
			errCh <- fmt.Errorf("failed to initialize index: %w", err)
			return
		}
		logger.Info("index ready", zap.Bool("built", built))
		srv.MarkReady(components.Composer)
		if cfg.Documents.Watch {
			if err := startWatcher(ctx, cfg, components, logger); err != nil {
				logger.Warn("document watcher disabled", zap.Error(err))
			}
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case runErr = <-errCh:
		logger.Error("shutting down after error", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	select {
	case <-initDone:
	case <-shutdownCtx.Done():
		logger.Warn("index initialization did not stop in time")
	}
	return runErr
}

// startWatcher rebuilds the index whenever the documents change. It stops with ctx.
func startWatcher(ctx context.Context, cfg *config.Config, components *Components, logger *zap.Logger) error {
	w := watcher.NewWatcher(cfg.Documents.Directory, cfg.Documents.Extensions,
		func(ctx context.Context) {
			stats, err := components.Indexer.Rebuild(ctx)
			if err != nil {
				logger.Warn("index rebuild failed, keeping previous index", zap.Error(err))
				return
			}
			logger.Info("index rebuilt",
				zap.Int("documents", stats.Documents),
				zap.Int("chunks", stats.Chunks),
				zap.Duration("duration", stats.Duration))
		},
		watcher.WithDebounce(cfg.Documents.WatchDebounce),
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info("watching documents", zap.String("dir", cfg.Documents.Directory))
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
