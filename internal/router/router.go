// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/config"
	"github.com/iliyamo/restful-api/internal/handler"
	"github.com/iliyamo/restful-api/internal/middleware"
	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/security"
	"github.com/iliyamo/restful-api/internal/validation"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth      *handler.AuthHandler
	Employees *handler.EmployeeHandler
	Accounts  *handler.AccountHandler
	Ready     *handler.Readiness
	Issuer    *security.TokenIssuer
	Redis     *redis.Client // nil disables rate limiting
	RateLimit config.RateLimitConfig
	Log       zerolog.Logger
	// Production hides internal error details from responses.
	Production bool
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(d.Log, d.Production)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORS())

	RegisterRoutes(e, d.Ready)
	RegisterAuth(e, d)
	RegisterEmployees(e, d.Employees, d.Issuer)
	RegisterAccounts(e, d.Accounts, d.Issuer)
	return e
}

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, ready *handler.Readiness) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the credential endpoints. Register, login and
// refresh are rate limited per client IP and route.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/v1/auth", middleware.RateLimit(d.RateLimit, d.Redis, d.Log))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/logout-all", a.LogoutAll, middleware.JWTAuth(d.Issuer))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(d.Issuer))
}

// RegisterEmployees: any authenticated role may read, only Admin may write.
func RegisterEmployees(e *echo.Echo, h *handler.EmployeeHandler, issuer *security.TokenIssuer) {
	g := e.Group("/v1/employees", middleware.JWTAuth(issuer))
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.POST("", h.Create, admin)
	g.PUT("/:id", h.Update, admin)
	g.DELETE("/:id", h.Delete, admin)
}

// RegisterAccounts: staff may read accounts, only Admin may change them.
func RegisterAccounts(e *echo.Echo, h *handler.AccountHandler, issuer *security.TokenIssuer) {
	g := e.Group("/v1/accounts",
		middleware.JWTAuth(issuer),
		middleware.RequireRole(model.RoleAdmin, model.RoleModerator),
	)
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.PUT("/:id/role", h.SetRole, admin)
	g.DELETE("/:id", h.Delete, admin)
}
