package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"iuran/internal/config"
	"iuran/internal/ledger"
	applog "iuran/internal/log"
	"iuran/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting provision-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	provisioner := ledger.NewProvisioner(repo, repo)
	provisioner.SetConcurrency(cfg.ProvisionConcurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on startup so a worker that was down over a month boundary
	// still fills the gap.
	logger.Info("Running initial provisioning...")
	summary, err := provisioner.ProvisionToCurrent(ctx)
	report(logger, summary, err)

	// Then provision each new calendar year as it starts.
	go func() {
		for {
			now := time.Now()
			nextYear := time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.Local)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(nextYear)):
				logger.Info("Provisioning new year", "year", nextYear.Year())
				summary, err := provisioner.ProvisionYear(ctx, nextYear.Year())
				report(logger, summary, err)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	logger.Info("Provision-worker stopped")
}

func report(logger *applog.Logger, summary ledger.ProvisionSummary, err error) {
	if err != nil {
		logger.Error("Provisioning failed", applog.FieldError, err)
		return
	}
	logger.Info("Provisioning complete",
		"houses", summary.Houses,
		"months", summary.Months,
		"created", summary.Created,
		"failed", summary.Failed)
}
