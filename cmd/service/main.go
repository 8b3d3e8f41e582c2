// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-org-mirror/internal/api"
	"github-org-mirror/internal/config"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/status"
	"github-org-mirror/internal/store"
	"github-org-mirror/internal/store/memory"
	"github-org-mirror/internal/store/postgres"
	"github-org-mirror/internal/syncer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "store_driver", cfg.StoreDriver)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Open the store, running migrations for postgres
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 5. Initialize application components
	var clientOpts []github.Option
	if cfg.GithubAPIURL != "" {
		clientOpts = append(clientOpts, github.WithBaseURL(cfg.GithubAPIURL))
	}
	newClient := clientFactory(github.NewFactory(logger, clientOpts...))

	scheduler, err := syncer.NewScheduler(st, newClient, syncOptions(cfg), logger, cfg.SyncInterval, cfg.SyncConcurrency)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	reporter := status.NewReporter(st, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(st, scheduler, reporter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Start the scheduler and the HTTP server
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	case err := <-serverErr:
		cancel()
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	// Running syncs observe the cancelled context and reset their flags before returning.
	<-schedulerDone
	scheduler.Wait()
	logger.Info("Shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using the in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	}

	if err := postgres.Migrate(cfg.DBURL); err != nil {
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	pool, err := postgres.Connect(ctx, cfg.DBURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")
	return postgres.New(pool), pool.Close, nil
}

func syncOptions(cfg *config.Config) syncer.Options {
	return syncer.Options{
		PerPage:          cfg.PerPage,
		PageDelay:        cfg.PageDelay,
		HistoryPageDelay: cfg.HistoryPageDelay,
		RateLimitBackoff: cfg.RateLimitBackoff,
		MemberCap:        cfg.MemberCap,
		ExtraRepos:       cfg.ExtraRepos,
		ExtraPRCap:       cfg.ExtraPRCap,
		ExtraIssueCap:    cfg.ExtraIssueCap,
	}
}

// clientFactory adapts the concrete client factory to the interface the syncer consumes.
func clientFactory(f github.Factory) syncer.ClientFactory {
	return func(token string) (syncer.GitHubAPI, error) {
		c, err := f(token)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
