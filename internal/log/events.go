package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HTTPStarted logs an incoming request at debug level.
func (l *Logger) HTTPStarted(ctx context.Context, r *http.Request, clientIP string) {
	l.LogAttrs(ctx, slog.LevelDebug, "HTTP request started",
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.String(FieldQuery, r.URL.RawQuery),
		slog.String(FieldUserAgent, r.Header.Get("User-Agent")),
		slog.String(FieldReferer, r.Header.Get("Referer")),
		slog.String(FieldClientIP, clientIP))
}

// HTTPCompleted logs a finished request; 4xx at warn, 5xx at error.
func (l *Logger) HTTPCompleted(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.LogAttrs(ctx, level, "HTTP request completed",
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.Int(FieldStatusCode, status),
		slog.Int64(FieldDuration, elapsed.Milliseconds()),
		slog.Bool(FieldSuccess, status < 400),
		slog.String(FieldClientIP, clientIP))
}

// Resolution describes one resolve submission for logging.
type Resolution struct {
	User        string
	DailySaleID int64
	Type        string
	Rows        int
	TotalCents  int64
	Reference   string
}

func (e Resolution) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String(FieldOperation, OpResolve),
		slog.String(FieldUser, e.User),
		slog.Int64(FieldDailySaleID, e.DailySaleID),
		slog.String(FieldResolution, e.Type),
		slog.Int(FieldRows, e.Rows),
		slog.Int64(FieldTotalCents, e.TotalCents),
		slog.String(FieldReference, e.Reference),
	}
}

// ResolutionAccepted logs a resolve the backend accepted.
func (l *Logger) ResolutionAccepted(ctx context.Context, e Resolution) {
	l.LogAttrs(ctx, slog.LevelInfo, "Pending amount resolved", e.attrs()...)
}

// ResolutionRejected logs a submit refused locally or by the backend.
func (l *Logger) ResolutionRejected(ctx context.Context, e Resolution, reason error) {
	attrs := append(e.attrs(), Err(reason))
	l.LogAttrs(ctx, slog.LevelWarn, "Resolution rejected", attrs...)
}

// Err is the error attribute; a nil error logs as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
