package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restful-api/internal/config"
	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/security"
)

func testIssuer() *security.TokenIssuer {
	return security.NewTokenIssuer(config.JWTConfig{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "restful-api",
		Audience:  "restful-api-clients",
		AccessTTL: time.Minute,
		Leeway:    30 * time.Second,
	})
}

func bearer(t *testing.T, iss *security.TokenIssuer, role model.Role) string {
	t.Helper()
	raw, _, err := iss.Issue(model.Account{ID: 3, Username: "carol", Email: "carol@example.com", Role: role})
	require.NoError(t, err)
	return "Bearer " + raw
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	iss := testIssuer()
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		cl, ok := ClaimsFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, cl.Username+"|"+c.Get(UserIDKey).(string)+"|"+c.Get(RoleKey).(string))
	}, JWTAuth(iss))

	rec := serve(e, http.MethodGet, "/me", bearer(t, iss, model.RoleUser))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol|3|User", rec.Body.String())

	for name, auth := range map[string]string{
		"missing":   "",
		"no scheme": "abc",
		"garbage":   "Bearer not-a-token",
		"empty":     "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", auth).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	iss := testIssuer()
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/admin", ok, JWTAuth(iss), RequireRole(model.RoleAdmin))
	e.GET("/staff", ok, JWTAuth(iss), RequireRole(model.RoleAdmin, model.RoleModerator))

	tests := []struct {
		path string
		role model.Role
		want int
	}{
		{"/admin", model.RoleAdmin, http.StatusNoContent},
		{"/admin", model.RoleModerator, http.StatusForbidden},
		{"/admin", model.RoleUser, http.StatusForbidden},
		{"/staff", model.RoleModerator, http.StatusNoContent},
		{"/staff", model.RoleUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, serve(e, http.MethodGet, tt.path, bearer(t, iss, tt.role)).Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            10 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(cfg, rdb, zerolog.Nop()))

	first := serve(e, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", "").Code)

	blocked := serve(e, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, Prefix: "rl"}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(cfg, rdb, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", "").Code)
	}
}

func TestRateLimit_DisabledPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(config.RateLimitConfig{Enabled: true}, nil, zerolog.Nop()))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })

	rec := serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"route":"/boom"`)
}
