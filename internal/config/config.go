package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "stationdesk/internal/log"
)

const (
	BackendREST   = "rest"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Back-office backend
	DataBackend     string
	BackendURL      string
	BackendToken    string
	BackendTimeout  time.Duration
	DataDir         string
	HistoryPageSize int

	// Bank accounts change rarely; pending items and history are never cached.
	AccountsCacheTTL time.Duration

	// Submission journal, disabled when empty
	SQLiteDBPath string

	// AMQP, disabled when URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Development identity used when no trusted proxy supplies one
	DevUser string
	DevRole string

	// Worker
	ConfirmInterval  time.Duration
	ConfirmBatchSize int

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),

		DataBackend:     getEnv("DATA_BACKEND", BackendMemory),
		BackendURL:      getEnv("BACKEND_URL", ""),
		BackendToken:    getEnv("BACKEND_TOKEN", ""),
		BackendTimeout:  getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		DataDir:         getEnv("DATA_DIR", "./data"),
		HistoryPageSize: getEnvInt("HISTORY_PAGE_SIZE", 15),

		AccountsCacheTTL: getEnvDuration("ACCOUNTS_CACHE_TTL", time.Minute),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "stationdesk"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "resolution_submitted"),

		DevUser: getEnv("DEV_USER", ""),
		DevRole: getEnv("DEV_ROLE", "admin"),

		ConfirmInterval:  getEnvDuration("CONFIRM_INTERVAL", time.Minute),
		ConfirmBatchSize: getEnvInt("CONFIRM_BATCH_SIZE", 20),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the web server configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendREST:
		if c.BackendURL == "" {
			errors = append(errors, "BACKEND_URL is required when using rest backend")
		} else if u, err := url.Parse(c.BackendURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid backend URL '%s': %v", c.BackendURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid backend URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendREST, BackendMemory))
	}

	if c.BackendTimeout < time.Second || c.BackendTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be between 1s and 5m", c.BackendTimeout))
	}
	if c.HistoryPageSize < 1 || c.HistoryPageSize > 200 {
		errors = append(errors, fmt.Sprintf("invalid history page size %d: must be between 1 and 200", c.HistoryPageSize))
	}
	if c.AccountsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid accounts cache TTL %v: must not be negative", c.AccountsCacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be an IP or CIDR", p))
			}
		}
	}

	if c.DevUser != "" && c.DevRole == "" {
		errors = append(errors, "DEV_ROLE cannot be empty when DEV_USER is set")
	}

	if c.SQLiteDBPath != "" {
		errors = append(errors, validateDBDir(c.SQLiteDBPath)...)
	}
	errors = append(errors, c.validateAMQP()...)

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := applog.ParseFormat(c.LogFormat); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the confirmation worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLITE_DB_PATH is required for the worker")
	} else {
		errors = append(errors, validateDBDir(c.SQLiteDBPath)...)
	}
	if c.DataBackend != BackendREST && c.DataBackend != BackendMemory {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendREST, BackendMemory))
	}
	if c.DataBackend == BackendREST && c.BackendURL == "" {
		errors = append(errors, "BACKEND_URL is required when using rest backend")
	}
	errors = append(errors, c.validateAMQP()...)

	if c.ConfirmBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid confirm batch size %d: must be at least 1", c.ConfirmBatchSize))
	} else if c.ConfirmBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid confirm batch size %d: must be at most 1000", c.ConfirmBatchSize))
	}
	if c.ConfirmInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid confirm interval %v: must be at least 1 second", c.ConfirmInterval))
	} else if c.ConfirmInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid confirm interval %v: must be at most 24 hours", c.ConfirmInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func validateDBDir(path string) []string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return []string{fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)}
		}
	}
	return nil
}

// LoggerConfig builds the logger settings for component. Invalid level or
// format values fall back to info and text; Validate reports them.
func (c *Config) LoggerConfig(component string) applog.Config {
	level, _ := ParseLevel(c.LogLevel)
	format, _ := applog.ParseFormat(c.LogFormat)
	return applog.Config{Level: level, Component: component, Format: format}
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
