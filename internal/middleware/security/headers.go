package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Policy describes the response headers every page and partial carries.
type Policy struct {
	// ScriptOrigins are allowed to serve scripts besides the app itself.
	ScriptOrigins []string
	// HSTS is the Strict-Transport-Security max-age; zero disables it.
	HSTS time.Duration
}

// DefaultPolicy allows htmx from unpkg and pins HSTS for a year.
func DefaultPolicy() Policy {
	return Policy{
		ScriptOrigins: []string{"https://unpkg.com"},
		HSTS:          365 * 24 * time.Hour,
	}
}

// ContentSecurityPolicy renders the CSP header value. Inline scripts are
// never allowed; inline styles are, for htmx's indicator styles.
func (p Policy) ContentSecurityPolicy() string {
	script := append([]string{"'self'"}, p.ScriptOrigins...)
	directives := [][2]string{
		{"default-src", "'self'"},
		{"script-src", strings.Join(script, " ")},
		{"style-src", "'self' 'unsafe-inline'"},
		{"img-src", "'self' data:"},
		{"connect-src", "'self'"},
		{"object-src", "'none'"},
		{"frame-ancestors", "'none'"},
		{"base-uri", "'self'"},
		{"form-action", "'self'"},
	}
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}

func (p Policy) header() http.Header {
	return http.Header{
		"Content-Security-Policy":      {p.ContentSecurityPolicy()},
		"X-Content-Type-Options":       {"nosniff"},
		"X-Frame-Options":              {"DENY"},
		"Referrer-Policy":              {"strict-origin-when-cross-origin"},
		"Permissions-Policy":           {"geolocation=(), microphone=(), camera=(), payment=()"},
		"Cross-Origin-Opener-Policy":   {"same-origin"},
		"Cross-Origin-Resource-Policy": {"same-origin"},
	}
}

// Headers applies p to every response. Non-static responses default to
// no-store since they carry per-user data; HSTS is only sent over TLS.
func Headers(p Policy) func(http.Handler) http.Handler {
	fixed := p.header()
	hsts := ""
	if p.HSTS > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", int64(p.HSTS.Seconds()))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range fixed {
				h[k] = v
			}
			if !strings.HasPrefix(r.URL.Path, "/static/") && h.Get("Cache-Control") == "" {
				h.Set("Cache-Control", "no-store")
			}
			if r.TLS != nil && hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StaticCache marks embedded assets cacheable for maxAge.
func StaticCache(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int64(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
