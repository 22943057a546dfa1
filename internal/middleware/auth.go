// Package middleware provides shared request processing for handlers: the
// authentication gate, the rate limiter and visit capture.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/auth"
	"github.com/iliyamo/product-watch/internal/model"
)

// UserLoader resolves the authenticated subject to its user record.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// AuthGate returns the middleware protecting authenticated routes. Per
// request it verifies the bearer token, charges the rate limiter, loads the
// user and, when requireAdmin is set, checks the admin flag. Every failure
// produces the same 401 body so a caller cannot tell which check rejected
// it. Rate-limiter store errors are non-fatal; the limiter itself fails
// open. On success the resolved user is bound to the request context under
// "user", with "user_id" and "is_admin" set for convenience.
func AuthGate(engine *auth.TokenEngine, users UserLoader, limiter *RateLimiter, requireAdmin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return unauthorized(c)
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			ctx := c.Request().Context()
			claims, err := engine.VerifyAccessToken(ctx, raw)
			if err != nil {
				return unauthorized(c)
			}

			if !limiter.Allow(ctx, ClientIP(c.Request()), c.Request().URL.Path) {
				return unauthorized(c)
			}

			u, err := users.GetByID(ctx, claims.UserID)
			if err != nil {
				return unauthorized(c)
			}
			if requireAdmin && !u.IsAdmin {
				return unauthorized(c)
			}

			c.Set("user", u)
			c.Set("user_id", u.ID)
			c.Set("is_admin", u.IsAdmin)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// CurrentUser returns the user bound by AuthGate, or nil on public routes.
func CurrentUser(c echo.Context) *model.User {
	if u, ok := c.Get("user").(*model.User); ok {
		return u
	}
	return nil
}

// ClientIP extracts the client address for hashing and rate limiting: the
// first entry of X-Forwarded-For when present, else the direct connection
// address. Applied before any hashing so proxied requests hash the real
// client, not the proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
