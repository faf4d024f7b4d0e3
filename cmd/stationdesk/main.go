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

	"stationdesk/internal/amqp"
	"stationdesk/internal/backend"
	"stationdesk/internal/cache"
	"stationdesk/internal/config"
	"stationdesk/internal/core"
	apphttp "stationdesk/internal/http"
	applog "stationdesk/internal/log"
	"stationdesk/internal/services"
	"stationdesk/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(cfg.LoggerConfig(applog.ComponentApp))
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	caches := cache.NewManager()
	defer caches.Stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	office, err := backend.Open(backendCfg, logger.WithComponent(applog.ComponentBackend).Logger, caches)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	caches.StartCleanup(5 * time.Minute)

	checks := map[string]apphttp.ReadinessCheck{
		"backend": func(ctx context.Context) error {
			_, err := office.ListBankAccounts(ctx, true)
			return err
		},
	}

	// Journal and AMQP are optional; nil interfaces disable them.
	var (
		journal   services.Journal
		publisher services.EventPublisher
	)
	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize submission journal", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		journal = repo
		checks["journal"] = repo.Ping
		logger.Info("Submission journal enabled", "path", cfg.SQLiteDBPath, "schema", repo.Schema())
	} else {
		logger.Info("Submission journal disabled - no SQLITE_DB_PATH provided")
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Events are best effort; the web front end runs without them.
			logger.Warn("Failed to connect to AMQP, resolution events disabled", applog.FieldError, err)
		} else {
			publisher = client.WithLogger(logger.WithComponent(applog.ComponentAMQP).Logger)
			logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
		}
	}

	resolutions := services.NewResolutionService(office, journal, publisher)
	defer func() {
		if err := resolutions.Close(); err != nil {
			logger.Error("Failed to close resolution service", applog.FieldError, err)
		}
	}()

	var devUser core.User
	if cfg.DevUser != "" {
		devUser = core.User{Name: cfg.DevUser, Role: cfg.DevRole}
		logger.Warn("Development identity enabled", applog.FieldUser, cfg.DevUser, applog.FieldRole, cfg.DevRole)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Pending:     office,
		Accounts:    office,
		History:     office,
		Reports:     office,
		Resolutions: resolutions,
		Logger:      logger,
		Checks:      checks,
	}, apphttp.Options{
		HistoryPageSize:    cfg.HistoryPageSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		DevUser:            devUser,
		BackendTimeout:     cfg.BackendTimeout,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
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

	logger.Info("Starting stationdesk server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
