package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/contentgen"
	"github.com/jonathan/autoapply/internal/logging"
	"github.com/jonathan/autoapply/internal/notify"
	"github.com/jonathan/autoapply/internal/notion"
	"github.com/jonathan/autoapply/internal/ratelimit"
	"github.com/jonathan/autoapply/internal/submit"
	"github.com/jonathan/autoapply/internal/worker"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue processing worker pool",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCommand)
}

func runWorker(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level)

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pair, closeDispatch := openDispatch(cfg)
	defer closeDispatch()

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	defer generator.Close()

	submitter := submit.NewHTTPSubmitter(cfg.Submission.Endpoint, cfg.Submission.APIKey)
	executor := submit.NewExecutor(submitter, cfg.Submission.Timeout, cfg.Submission.BaseRetryDelay, cfg.Submission.MaxRetryDelay)

	var reporter notify.Reporter = notify.NoopReporter{}
	if cfg.Telegram.Token != "" {
		reporter, err = notify.NewTelegramReporter(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("failed to init telegram reporter: %w", err)
		}
	}

	var tracker notion.Tracker = notion.NoopTracker{}
	if cfg.Notion.APIKey != "" && cfg.Notion.DatabaseID != "" {
		tracker = notion.New(cfg.Notion.APIKey, cfg.Notion.DatabaseID)
	}

	pool := worker.NewPool(st, generator, executor, ratelimit.NewLimiter(st), reporter, tracker, pair, logger, worker.Config{
		Concurrency:   cfg.Worker.Concurrency,
		PollInterval:  cfg.Worker.PollInterval,
		LeaseDuration: cfg.Worker.LeaseDuration,
		BatchSize:     cfg.Worker.BatchSize,
	})

	logger.Info("worker pool starting", "concurrency", cfg.Worker.Concurrency)
	return pool.Run(ctx)
}

func newGenerator(ctx context.Context, cfg *config.Config) (contentgen.Generator, error) {
	switch cfg.Generator.Provider {
	case "gemini":
		return contentgen.NewGeminiGenerator(ctx, cfg.Generator.APIKey, cfg.Generator.Model)
	case "template", "":
		return contentgen.NewTemplateGenerator(), nil
	}
	return nil, fmt.Errorf("unknown generator provider: %s", cfg.Generator.Provider)
}
