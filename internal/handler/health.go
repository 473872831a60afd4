package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/cache"
)

// Health is the liveness probe: it answers as long as the process serves
// HTTP.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Readiness reports whether the database and the cache backend answer.
type Readiness struct {
	DB    *sql.DB
	Cache *cache.Cache
}

type readyResp struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready: GET /readyz
func (r *Readiness) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := readyResp{Status: "ok", Checks: map[string]string{"database": "ok", "cache": "ok"}}
	code := http.StatusOK
	if err := r.DB.PingContext(ctx); err != nil {
		resp.Checks["database"] = err.Error()
		resp.Status, code = "unavailable", http.StatusServiceUnavailable
	}
	// A cache outage degrades latency only; report it without failing readiness.
	if err := r.Cache.Ping(ctx); err != nil {
		resp.Checks["cache"] = "degraded: " + err.Error()
	}
	return c.JSON(code, resp)
}
