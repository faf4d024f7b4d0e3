package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stationdesk/internal/core"
)

func newRequest(remote string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/pending", nil)
	r.RemoteAddr = remote
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestNewDetectorRejectsBadProxy(t *testing.T) {
	if _, err := NewDetector([]string{"proxy.local"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector([]string{"127.0.0.1", "10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct client", "203.0.113.5:5000", nil, "203.0.113.5"},
		{"untrusted forwarded header ignored", "203.0.113.5:5000", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "203.0.113.5"},
		{"trusted proxy forwards", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, "198.51.100.7"},
		{"trusted proxy real ip", "10.1.2.3:4000", map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"invalid forwarded value", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "garbage"}, "127.0.0.1"},
		{"spoofed leftmost hop", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "192.0.2.66, 198.51.100.7"}, "198.51.100.7"},
		{"all hops trusted", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.3"},
		{"ipv6 peer", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"ipv4-mapped trusted peer", "[::ffff:127.0.0.1]:4000", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.ExtractClientIP(newRequest(tt.remote, tt.headers)); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Errorf("invalid attempts = %d", d.GetMetrics().InvalidIPAttempts)
	}
}

func TestInspect(t *testing.T) {
	d, _ := NewDetector(nil)

	scanner := httptest.NewRequest(http.MethodGet, "/", nil)
	scanner.Header.Set("User-Agent", "sqlmap/1.7")
	chain := httptest.NewRequest(http.MethodGet, "/pending", nil)
	chain.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2, 3.3.3.3, 4.4.4.4, 5.5.5.5, 6.6.6.6, 7.7.7.7")

	tests := []struct {
		name   string
		req    *http.Request
		reason string
	}{
		{"normal report", httptest.NewRequest(http.MethodGet, "/reports/settlement?from=2026-01-01", nil), ""},
		{"traversal", httptest.NewRequest(http.MethodGet, "/static/..%2f.env", nil), "probe marker in URL"},
		{"injection in query", httptest.NewRequest(http.MethodGet, "/ui/resolution-history?page=1+UNION+SELECT", nil), "probe marker in URL"},
		{"scanner", scanner, "scanner user agent"},
		{"trace method", httptest.NewRequest("TRACE", "/", nil), "debug method"},
		{"forwarding chain", chain, "long forwarding chain"},
	}
	flagged := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, bad := d.Inspect(tt.req)
			if reason != tt.reason || bad != (tt.reason != "") {
				t.Errorf("Inspect() = %q %v, want %q", reason, bad, tt.reason)
			}
		})
		if tt.reason != "" {
			flagged++
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != int64(flagged) {
		t.Fatalf("suspicious = %d, want %d", got, flagged)
	}
}

func TestIdentityMiddleware(t *testing.T) {
	d, _ := NewDetector([]string{"127.0.0.1"})
	dev := core.User{Name: "dev", Role: core.RoleAdmin}

	var got core.User
	h := IdentityMiddleware(d, dev)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	}))

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    core.User
	}{
		{"trusted proxy identity", "127.0.0.1:1", map[string]string{HeaderAuthUser: "alice", HeaderAuthRole: "Admin"}, core.User{Name: "alice", Role: "admin"}},
		{"trusted proxy staff", "127.0.0.1:1", map[string]string{HeaderAuthUser: "bob", HeaderAuthRole: "staff"}, core.User{Name: "bob", Role: "staff"}},
		{"spoofed headers from untrusted peer", "203.0.113.9:1", map[string]string{HeaderAuthUser: "mallory", HeaderAuthRole: "admin"}, dev},
		{"no headers", "127.0.0.1:1", nil, dev},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.ServeHTTP(httptest.NewRecorder(), newRequest(tt.remote, tt.headers))
			if got != tt.want {
				t.Errorf("user = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultPolicy())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing headers: %v", rec.Header())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("pages should not be cached: %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent over TLS")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Fatalf("static assets keep their own caching: %q", rec.Header().Get("Cache-Control"))
	}

	req := httptest.NewRequest(http.MethodGet, "/pending", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestContentSecurityPolicy(t *testing.T) {
	csp := DefaultPolicy().ContentSecurityPolicy()
	if !strings.Contains(csp, "script-src 'self' https://unpkg.com;") {
		t.Fatalf("htmx origin not allowed: %s", csp)
	}
	if strings.Contains(csp, "'unsafe-eval'") || strings.Contains(csp, "script-src 'self' 'unsafe-inline'") {
		t.Fatalf("inline scripts must stay blocked: %s", csp)
	}

	bare := Policy{}.ContentSecurityPolicy()
	if !strings.Contains(bare, "script-src 'self';") {
		t.Fatalf("unexpected CSP without origins: %s", bare)
	}
}

func TestStaticCache(t *testing.T) {
	h := StaticCache(time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Fatalf("Cache-Control = %q", got)
	}
}
