package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"stationdesk/internal/core"
	applog "stationdesk/internal/log"
	"stationdesk/internal/middleware/ratelimit"
	"stationdesk/internal/middleware/security"
	"stationdesk/internal/middleware/trace"
	"stationdesk/internal/ports"
	"stationdesk/internal/services"
	appweb "stationdesk/web"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators the handlers call.
type Deps struct {
	Pending     ports.PendingItemReader
	Accounts    ports.BankAccountReader
	History     ports.HistoryReader
	Reports     ports.ReportReader
	Resolutions *services.ResolutionService
	Logger      *applog.Logger
	// Checks are run by /readyz in addition to the template check.
	Checks map[string]ReadinessCheck
}

// Options tune the server.
type Options struct {
	HistoryPageSize    int
	RateLimitPerMinute int
	TrustedProxies     []string
	// DevUser is the identity used when no trusted proxy supplies one.
	DevUser core.User
	// BackendTimeout bounds each page load's backend calls.
	BackendTimeout time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	deps      Deps
	opts      Options
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	tracer           *trace.Tracer
	started          time.Time
	now              func() time.Time
	resolutions      resolutionCounters

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Pending == nil || deps.Accounts == nil || deps.History == nil || deps.Reports == nil {
		return nil, errors.New("http: backend readers are required")
	}
	if deps.Resolutions == nil {
		return nil, errors.New("http: resolution service is required")
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig(slog.LevelInfo))
	}
	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = 15
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = 15 * time.Second
	}

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	logger := deps.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		deps:             deps,
		opts:             opts,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: detector,
		tracer:           trace.New(logger, detector.ExtractClientIP),
		started:          time.Now(),
		now:              time.Now,
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		// The server still answers health checks; pages report the failure.
		logger.Error("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticCache(time.Hour)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /pending", s.handlePendingPage)
	mux.HandleFunc("GET /ui/pending-items", s.handlePendingItems)
	mux.HandleFunc("GET /ui/resolution-history", s.handleResolutionHistory)
	mux.HandleFunc("GET /ui/resolve-modal", s.handleResolveModal)
	mux.HandleFunc("POST /ui/resolve-modal/rows", s.handleResolveRows)
	mux.HandleFunc("POST /resolutions", s.handleSubmitResolution)

	mux.HandleFunc("GET /reports/daily-sales", s.handleDailySalesReport)
	mux.HandleFunc("GET /reports/fuel-volumes", s.handleFuelVolumesReport)
	mux.HandleFunc("GET /reports/settlement", s.handleSettlementReport)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = security.IdentityMiddleware(detector, opts.DevUser)(handler)
	handler = s.detectSuspicious(handler)
	handler = security.Headers(security.DefaultPolicy())(handler)
	handler = s.tracer.Wrap(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.log(r, applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	alert(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		Header("Retry-After", strconv.Itoa(s.rateLimiter.RetryAfter())).
		Notify(NotificationError, "Too many requests. Please wait a minute and try again.").
		Write(w)
}

// detectSuspicious only logs; blocking is left to the edge proxy.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, bad := s.securityDetector.Inspect(r); bad {
			s.log(r, applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// log returns the request logger labelled with component and the caller.
func (s *Server) log(r *http.Request, component string) *applog.Logger {
	u := security.UserFromContext(r.Context())
	return applog.FromContext(r.Context()).WithComponent(component).WithUser(u.Name, u.Role)
}

// backendContext bounds the backend calls of one request.
func (s *Server) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.BackendTimeout)
}

// render buffers the template output; nothing is written when execution fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderWith(w, r, NewHTMXResponse().Status(status), name, data)
}

// renderWith is render with a prepared builder carrying status and triggers.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, b *Response, name string, data any) {
	if s.templates == nil {
		alert(http.StatusInternalServerError, "Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log(r, applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
		alert(http.StatusInternalServerError, "Failed to render page").Write(w)
		return
	}
	b.HTML(buf.Bytes()).Write(w)
}

// pageData is shared by every full page.
type pageData struct {
	Title  string
	Active string
	User   core.User
	Data   any
}

func (s *Server) page(r *http.Request, title, active string, data any) pageData {
	return pageData{
		Title:  title,
		Active: active,
		User:   security.UserFromContext(r.Context()),
		Data:   data,
	}
}
