package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/security"
)

// ClaimsFrom returns the claims stored by JWTAuth.
func ClaimsFrom(c echo.Context) (*security.Claims, bool) {
	cl, ok := c.Get(ClaimsKey).(*security.Claims)
	return cl, ok && cl != nil
}

// currentUserID returns the authenticated subject, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(UserIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
