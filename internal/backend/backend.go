// Package backend selects and assembles the back-office implementation the
// front end talks to.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stationdesk/internal/backoffice"
	"stationdesk/internal/backoffice/memory"
	"stationdesk/internal/cache"
	"stationdesk/internal/config"
	"stationdesk/internal/ports"
)

// Backend is everything the front end reads from or sends to the back office.
type Backend interface {
	ports.PendingItemReader
	ports.BankAccountReader
	ports.Resolver
	ports.HistoryReader
	ports.ReportReader
}

// Kind names a Backend implementation.
type Kind string

const (
	KindREST   Kind = config.BackendREST
	KindMemory Kind = config.BackendMemory
)

type Config struct {
	Kind Kind

	// REST
	BaseURL string
	Token   string
	Timeout time.Duration

	// Memory: directory holding an optional seed.json
	DataDirectory string

	// Bank account cache, disabled when zero
	AccountsCacheTTL time.Duration
}

type constructor func(Config, *slog.Logger) (Backend, error)

var constructors = map[Kind]constructor{
	KindREST:   newREST,
	KindMemory: newMemory,
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("backend: app config is nil")
	}
	cfg := Config{
		Kind:             Kind(app.DataBackend),
		BaseURL:          app.BackendURL,
		Token:            app.BackendToken,
		Timeout:          app.BackendTimeout,
		DataDirectory:    app.DataDir,
		AccountsCacheTTL: app.AccountsCacheTTL,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, ok := constructors[c.Kind]; !ok {
		return fmt.Errorf("backend: unknown kind %q", c.Kind)
	}
	if c.Kind == KindREST && c.BaseURL == "" {
		return errors.New("backend: base URL is required for rest")
	}
	if c.AccountsCacheTTL < 0 {
		return errors.New("backend: accounts cache TTL must not be negative")
	}
	return nil
}

// Open builds the configured backend. With a cache TTL the result is a
// *CachedBackend whose account cache is registered with caches, if given.
func Open(cfg Config, logger *slog.Logger, caches *cache.Manager) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := constructors[cfg.Kind](cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AccountsCacheTTL <= 0 {
		return b, nil
	}

	cached := NewCachedBackend(b, cfg.AccountsCacheTTL)
	if caches != nil {
		caches.Register(cached.Accounts())
	}
	logger.Info("Bank account cache enabled", "ttl", cfg.AccountsCacheTTL)
	return cached, nil
}

func newREST(cfg Config, logger *slog.Logger) (Backend, error) {
	client, err := backoffice.New(backoffice.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	logger.Info("Using REST backend", "base_url", cfg.BaseURL, "token_set", cfg.Token != "")
	return client, nil
}

func newMemory(cfg Config, logger *slog.Logger) (Backend, error) {
	dir := cfg.DataDirectory
	if dir == "" {
		dir = "data"
	}
	store, err := memory.NewFromFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	logger.Info("Using in-memory backend", "data_directory", dir)
	return store, nil
}
