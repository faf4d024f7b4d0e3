// Package trace tags every request with an id, stores a request-scoped
// logger on its context and writes the access log.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "stationdesk/internal/log"
)

// Header carries the request id in and out.
const Header = "X-Request-ID"

// Incoming ids are kept only when they are safe to echo and log.
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type requestIDKey struct{}

// RequestID returns the id Wrap assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Stats is a snapshot of the tracer's counters.
type Stats struct {
	Requests     int64
	ServerErrors int64
	// AvgResponse is an exponential moving average over all requests.
	AvgResponse  time.Duration
}

type Tracer struct {
	logger   *applog.Logger
	clientIP func(*http.Request) string
	now      func() time.Time

	requests     atomic.Int64
	serverErrors atomic.Int64
	avgMicros    atomic.Int64
}

// New returns a tracer logging through logger. clientIP may be nil.
func New(logger *applog.Logger, clientIP func(*http.Request) string) *Tracer {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	if clientIP == nil {
		clientIP = func(*http.Request) string { return "" }
	}
	return &Tracer{logger: logger, clientIP: clientIP, now: time.Now}
}

func (t *Tracer) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := t.now()
		ip := t.clientIP(r)

		id := r.Header.Get(Header)
		if !validID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)

		reqLogger := t.logger.With(applog.FieldRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = applog.IntoContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		access := reqLogger.WithComponent(applog.ComponentTrace)
		access.HTTPStarted(ctx, r, ip)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := t.now().Sub(start)
		t.observe(elapsed, rec.status)
		access.HTTPCompleted(ctx, r, rec.status, elapsed, ip)
	})
}

func (t *Tracer) observe(d time.Duration, status int) {
	t.requests.Add(1)
	if status >= 500 {
		t.serverErrors.Add(1)
	}
	us := d.Microseconds()
	for {
		old := t.avgMicros.Load()
		next := us
		if old != 0 {
			next = old + (us-old)/8
		}
		if t.avgMicros.CompareAndSwap(old, next) {
			return
		}
	}
}

func (t *Tracer) Stats() Stats {
	return Stats{
		Requests:     t.requests.Load(),
		ServerErrors: t.serverErrors.Load(),
		AvgResponse:  time.Duration(t.avgMicros.Load()) * time.Microsecond,
	}
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
