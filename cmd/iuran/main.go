package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"iuran/internal/amqp"
	"iuran/internal/auth"
	"iuran/internal/config"
	apphttp "iuran/internal/http"
	"iuran/internal/ledger"
	applog "iuran/internal/log"
	"iuran/internal/proofs"
	gdrive "iuran/internal/proofs/google"
	"iuran/internal/proofs/local"
	"iuran/internal/storage"
)

func main() {
	// .env is for local development; absent in containers.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	// The publisher is optional: without a broker the API still works,
	// payment events are simply not emitted.
	var events ledger.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, payment events disabled", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	proofStore, proofDir, err := buildProofStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize proof storage", applog.FieldError, err, "backend", cfg.ProofBackend)
		os.Exit(1)
	}

	authSvc := auth.NewService(repo, []byte(cfg.JWTSecret), cfg.JWTTTL)
	provisioner := ledger.NewProvisioner(repo, repo)
	provisioner.SetConcurrency(cfg.ProvisionConcurrency)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Logger:      logger,
		Auth:        authSvc,
		Directory:   repo,
		Reconciler:  ledger.NewReconciler(repo, repo, repo, events),
		Provisioner: provisioner,
		Aggregator:  ledger.NewAggregator(repo),
		Proofs:      proofStore,
		ProofDir:    proofDir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting iuran server", "port", cfg.Port, "proof_backend", cfg.ProofBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// buildProofStore returns the configured proof backend plus, for the local
// backend, the directory the server should mount at /proofs/.
func buildProofStore(cfg *config.Config) (proofs.Store, string, error) {
	switch cfg.ProofBackend {
	case "drive":
		client, err := gdrive.New(context.Background(), cfg.DriveFolderID, cfg.GoogleCredentialsFile, cfg.GoogleCredentialsJSON)
		if err != nil {
			return nil, "", err
		}
		return client, "", nil
	default:
		store, err := local.New(cfg.ProofLocalDir)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	}
}
