package security

import (
	"context"
	"net/http"
	"strings"

	"stationdesk/internal/core"
)

const (
	HeaderAuthUser = "X-Auth-User"
	HeaderAuthRole = "X-Auth-Role"
)

type userKey struct{}

// WithUser stores the request identity on ctx.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the identity resolved by IdentityMiddleware, or
// the zero User for anonymous requests.
func UserFromContext(ctx context.Context) core.User {
	u, _ := ctx.Value(userKey{}).(core.User)
	return u
}

// IdentityMiddleware resolves who is calling. Identity headers are read
// only from trusted proxies; otherwise the fallback identity applies, which
// is empty unless a development user is configured.
func IdentityMiddleware(d *Detector, fallback core.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := fallback
			if d.FromTrustedProxy(r) {
				if name := strings.TrimSpace(r.Header.Get(HeaderAuthUser)); name != "" {
					user = core.User{
						Name: name,
						Role: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderAuthRole))),
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
