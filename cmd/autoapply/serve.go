package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/db"
	"github.com/jonathan/autoapply/internal/dispatch"
	"github.com/jonathan/autoapply/internal/logging"
	"github.com/jonathan/autoapply/internal/server"
	"github.com/jonathan/autoapply/internal/store"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCommand)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level)

	st, cleanup, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	notifier, closeDispatch := openDispatch(cfg)
	defer closeDispatch()

	srv := server.New(st, notifier, logger, server.Config{
		Port:       cfg.Server.Port,
		APIKey:     cfg.Server.APIKey,
		MaxRetries: cfg.Submission.MaxRetries,
	})
	return srv.Start()
}

// openStore connects to PostgreSQL when DATABASE_URL is set, falling back to
// the in-memory store for local development.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, continuing without database persistence")
		return store.NewMemory(), func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, database.Close, nil
}

// openDispatch returns the Redis dispatcher when configured, else a no-op.
func openDispatch(cfg *config.Config) (*dispatchPair, func()) {
	if cfg.Redis.Addr == "" {
		return &dispatchPair{Notifier: dispatch.Noop{}, Waiter: dispatch.Noop{}}, func() {}
	}
	rd := dispatch.NewRedisDispatch(cfg.Redis.Addr, cfg.Redis.Password, "autoapply:ready")
	return &dispatchPair{Notifier: rd, Waiter: rd}, func() { _ = rd.Close() }
}

// dispatchPair bundles both sides of the dispatch channel.
type dispatchPair struct {
	dispatch.Notifier
	dispatch.Waiter
}
