package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/web"
)

type contextKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the session attached by Middleware.RequireSession.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

type Middleware struct {
	issuer *Issuer
	logger *slog.Logger
}

func NewMiddleware(issuer *Issuer, logger *slog.Logger) *Middleware {
	return &Middleware{issuer: issuer, logger: logger}
}

func (m *Middleware) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := tokenFromRequest(r)
		if err != nil {
			web.WriteError(w, m.logger, http.StatusUnauthorized, "please log in")
			return
		}

		claims, err := m.issuer.Verify(raw)
		if err != nil {
			m.logger.Warn("rejected session token", "error", err, "path", r.URL.Path)
			web.WriteError(w, m.logger, http.StatusUnauthorized, "please log in")
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireSession(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := FromContext(r.Context())
		if !claims.IsAdmin {
			m.logger.Warn("non-admin denied", "user_id", claims.ID, "path", r.URL.Path)
			web.WriteError(w, m.logger, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}
