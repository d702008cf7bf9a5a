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

	"github.com/ddevcap/movie-catalog/api"
	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/metrics"
	"github.com/ddevcap/movie-catalog/omdb"
	"github.com/ddevcap/movie-catalog/seeder"
	"github.com/ddevcap/movie-catalog/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("movie catalog stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until SIGINT/SIGTERM. Deferred cleanup runs on every return path.
func run(cfg config.Config) error {
	// Stop on SIGINT/SIGTERM, including while seeding.
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running schema migration: %w", err)
	}

	api.SeedInitialUser(ctx, db, cfg)

	metrics.Register()
	client := omdb.NewClient(cfg)
	defer client.Close()

	if cfg.SeedEnabled {
		if cfg.OMDBAPIKey == "" {
			slog.Warn("seed: OMDB_API_KEY is not set, lookups will fail")
		}
		s := seeder.New(client, db.NewBatch(), seeder.PlanFromConfig(cfg))
		if _, err := s.Run(ctx); err != nil {
			return fmt.Errorf("catalog seeding: %w", err)
		}
	}

	h, stopLimiter := api.NewRouter(db, cfg, client)
	defer stopLimiter()

	sessionCleaner := api.NewSessionCleaner(db, cfg)
	sessionCleaner.Start(context.Background())
	defer sessionCleaner.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("movie catalog listening", "addr", cfg.ListenAddr, "database", db.Dialect())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
