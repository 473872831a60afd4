// Package middleware holds the echo middleware shared by the routes:
// bearer token authentication, role checks, rate limiting and request
// logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/security"
)

// Context keys set by JWTAuth.
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// JWTAuth validates a Bearer access token and stores its claims in the
// echo context. Handlers read them with ClaimsFrom; the subject and role are
// also set under UserIDKey and RoleKey as strings.
func JWTAuth(issuer *security.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := issuer.Parse(strings.TrimSpace(raw))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, claims.Subject)
			c.Set(RoleKey, string(claims.Role))
			return next(c)
		}
	}
}
