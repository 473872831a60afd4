package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/metrics"
)

// RequestLogger logs one line per request and records its latency.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestDuration.
				WithLabelValues(req.Method, route, strconv.Itoa(status)).
				Observe(elapsed.Seconds())

			ev := log.Info()
			if status >= 500 {
				ev = log.Error()
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", route).
				Int("status", status).
				Dur("latency", elapsed).
				Str("ip", c.RealIP()).
				Str("user_id", currentUserID(c)).
				Msg("request")
			return nil
		}
	}
}
