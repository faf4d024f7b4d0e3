package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// IntoContext stores l on ctx for FromContext.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or one wrapping slog's default
// when ctx carries none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return wrap(slog.Default(), "")
}
