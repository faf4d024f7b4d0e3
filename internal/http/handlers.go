package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	applog "stationdesk/internal/log"
)

// resolutionCounters count submission outcomes for /metrics.
type resolutionCounters struct {
	accepted atomic.Int64
	rejected atomic.Int64
	invalid  atomic.Int64
}

type healthBody struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    string         `json:"uptime,omitempty"`
	Checks    map[string]any `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth is the liveness probe; it never touches the backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status:    "ok",
		Timestamp: s.now().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs the template check and every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body := healthBody{
		Status:    "ready",
		Timestamp: s.now().Format(time.RFC3339),
		Checks:    map[string]any{"templates": "ok"},
	}
	fail := func(name string, err error) {
		body.Status = "not_ready"
		body.Checks[name] = fmt.Sprintf("failed: %v", err)
	}

	if s.templates == nil {
		fail("templates", fmt.Errorf("templates not loaded"))
	}
	for _, name := range slices.Sorted(maps.Keys(s.deps.Checks)) {
		if err := s.deps.Checks[name](ctx); err != nil {
			s.log(r, applog.ComponentHTTP).WarnContext(ctx, "Readiness check failed",
				"check", name,
				applog.FieldError, err)
			fail(name, err)
			continue
		}
		body.Checks[name] = "ok"
	}
	body.Checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	status := http.StatusOK
	if body.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

// promWriter writes the Prometheus text exposition format.
type promWriter struct{ w io.Writer }

func (p promWriter) header(name, help, kind string) {
	fmt.Fprintf(p.w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func (p promWriter) counter(name, help string, v int64) {
	p.header(name, help, "counter")
	fmt.Fprintf(p.w, "%s %d\n\n", name, v)
}

func (p promWriter) gauge(name, help string, v float64) {
	p.header(name, help, "gauge")
	fmt.Fprintf(p.w, "%s %g\n\n", name, v)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	p := promWriter{w}

	traffic := s.tracer.Stats()
	p.counter("http_requests_total", "Total number of HTTP requests", traffic.Requests)
	p.counter("http_server_errors_total", "Responses with a 5xx status", traffic.ServerErrors)
	p.gauge("http_response_time_avg_microseconds", "Moving average of response time", float64(traffic.AvgResponse.Microseconds()))

	p.header("resolutions_total", "Resolution submissions by outcome", "counter")
	for _, c := range []struct {
		outcome string
		n       *atomic.Int64
	}{
		{"accepted", &s.resolutions.accepted},
		{"rejected", &s.resolutions.rejected},
		{"invalid", &s.resolutions.invalid},
	} {
		fmt.Fprintf(w, "resolutions_total{outcome=%q} %d\n", c.outcome, c.n.Load())
	}
	fmt.Fprintln(w)

	limits := s.rateLimiter.GetMetrics()
	p.counter("rate_limit_hits_total", "Total rate limit hits", limits.TotalHits)
	p.gauge("active_rate_limit_clients", "Currently tracked rate limit clients", float64(limits.ClientCount))

	detected := s.securityDetector.GetMetrics()
	p.counter("suspicious_requests_total", "Total suspicious requests detected", detected.SuspiciousRequests)
	p.counter("invalid_ip_attempts_total", "Forwarded headers with an invalid IP", detected.InvalidIPAttempts)

	p.gauge("uptime_seconds", "Application uptime in seconds", time.Since(s.started).Truncate(time.Second).Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/pending", http.StatusFound)
}
