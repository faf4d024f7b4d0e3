package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stationdesk/internal/amqp"
	"stationdesk/internal/backend"
	"stationdesk/internal/config"
	applog "stationdesk/internal/log"
	"stationdesk/internal/storage"
	"stationdesk/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(cfg.LoggerConfig(applog.ComponentWorker))
	applog.SetDefault(logger)

	logger.Info("Starting stationdesk-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	journal, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer journal.Close()
	logger.Info("Submission journal opened", "path", cfg.SQLiteDBPath, "schema", journal.Schema())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// History is never cached, so the worker needs no cache manager.
	backendCfg.AccountsCacheTTL = 0
	office, err := backend.Open(backendCfg, logger.WithComponent(applog.ComponentBackend).Logger, nil)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	confirmWorker := worker.NewConfirmWorker(journal, office, cfg.ConfirmBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on anything journaled while the worker was down.
	if err := confirmWorker.ProcessUnchecked(ctx); err != nil {
		logger.Error("Startup confirmation pass failed", applog.FieldError, err)
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		amqpClient.WithLogger(logger.WithComponent(applog.ComponentAMQP).Logger)

		go func() {
			if err := amqpClient.ConsumeResolutionSubmitted(ctx, confirmWorker.HandleResolutionSubmitted); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", applog.FieldError, err)
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic confirmation only")
	}

	ticker := time.NewTicker(cfg.ConfirmInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := confirmWorker.ProcessUnchecked(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Periodic confirmation failed", applog.FieldError, err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
