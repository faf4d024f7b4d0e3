package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler New builds.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps LOG_FORMAT to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format '%s': must be text or json", s)
	}
}

// Config holds logger configuration. Handler, when set, wins over Format
// and Output.
type Config struct {
	Level     slog.Level
	Component string
	Format    Format
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns a text logger on stdout at the given level
func DefaultConfig(level slog.Level) Config {
	return Config{Level: level, Component: ComponentApp, Format: FormatText}
}

// Logger is a slog.Logger that always carries a single component attribute.
type Logger struct {
	*slog.Logger
	// base holds every attribute except the component, so WithComponent
	// replaces the component instead of stacking a second one.
	base      *slog.Logger
	component string
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.Format == FormatJSON {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}
	return wrap(slog.New(handler), config.Component)
}

func wrap(base *slog.Logger, component string) *Logger {
	l := &Logger{Logger: base, base: base, component: component}
	if component != "" {
		l.Logger = base.With(FieldComponent, component)
	}
	return l
}

// With returns a logger with extra attributes and the same component.
func (l *Logger) With(args ...any) *Logger {
	return wrap(l.base.With(args...), l.component)
}

// WithComponent returns the logger relabelled with component.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

// WithUser attaches the operator identity.
func (l *Logger) WithUser(name, role string) *Logger {
	if name == "" {
		return l
	}
	return l.With(FieldUser, name, FieldRole, role)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the logger, component included, as slog's default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
