package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/apperr"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - maps apperr kinds to HTTP status codes,
//   - logs client errors at warn and server errors at error,
//   - renders {"code","message","details"}; details carry the internal
//     error text and are omitted in production.
func NewHTTPErrorHandler(log zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err)
		if !production && status >= 400 {
			var he *echo.HTTPError
			if !errors.As(err, &he) {
				body.Details = err.Error()
			}
		}

		ev := log.Warn()
		if status >= 500 {
			ev = log.Error()
		}
		ev.Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", status).
			Msg("request failed")

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, errorResponse{Code: statusCode(he.Code), Message: msg}
	}

	// ErrConflict is checked first: conflicts also match ErrValidation.
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, errorResponse{Code: "conflict", Message: apperr.Message(err, "already exists")}
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, errorResponse{Code: "validation_failed", Message: apperr.Message(err, "invalid input")}
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Code: "invalid_credentials", Message: apperr.Message(err, "invalid credentials")}
	case errors.Is(err, apperr.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, errorResponse{Code: "invalid_refresh_token", Message: "invalid refresh token"}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "not_found", Message: apperr.Message(err, "not found")}
	case errors.Is(err, apperr.ErrStorage):
		return http.StatusInternalServerError, errorResponse{Code: "storage_failure", Message: "internal error"}
	}
	return http.StatusInternalServerError, errorResponse{Code: "internal_error", Message: "internal error"}
}

func statusCode(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusUnauthorized:
		return "unauthorized"
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}
