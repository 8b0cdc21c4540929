// Package main is the entry point for the standalone order dispatcher.
// Run it next to API-only instances (WORKER_ENABLED=false) to scale
// order processing independently of request traffic. Instances share
// the queue safely; leasing uses FOR UPDATE SKIP LOCKED.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/database"
	"github.com/firmenkern/recherche-api/internal/logging"
	"github.com/firmenkern/recherche-api/internal/repository"
	"github.com/firmenkern/recherche-api/internal/service"
	"github.com/firmenkern/recherche-api/internal/version"
	"github.com/firmenkern/recherche-api/internal/worker"
)

func main() {
	var (
		pollInterval int
		concurrency  int
		once         bool
	)

	rootCmd := &cobra.Command{
		Use:           "recherche-worker",
		Short:         "Order dispatcher for the Recherche API",
		Long:          "Leases confirmed research orders, collects provider results, ingests them into the company directory and settles the charge.",
		Version:       version.Get().Short(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(pollInterval, concurrency, once)
		},
	}

	rootCmd.Flags().IntVar(&pollInterval, "poll-interval", 5, "Seconds between queue polls")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Dispatch goroutines (0 = use WORKER_CONCURRENCY)")
	rootCmd.Flags().BoolVar(&once, "once", false, "Process at most one order and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(pollInterval, concurrency int, once bool) error {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting recherche-worker",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
	)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// The API instance owns migrations; the worker only checks the
	// schema is present.
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repository.NewRepositories(db)
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if concurrency <= 0 {
		concurrency = cfg.WorkerConcurrency
	}

	dispatcher := worker.New(
		repos,
		services.Settings,
		services.Ledger,
		services.Archive,
		worker.Config{
			PollInterval:    time.Duration(pollInterval) * time.Second,
			Concurrency:     concurrency,
			StaleOrderAfter: cfg.StaleOrderAfter,
		},
		logger,
	)

	if once {
		processed, err := dispatcher.RunOnce(context.Background())
		if err != nil {
			return err
		}
		if !processed {
			logger.Info("no confirmed orders waiting")
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	dispatcher.Start(ctx)
	<-ctx.Done()

	logger.Info("shutting down")
	dispatcher.Stop()

	return nil
}
