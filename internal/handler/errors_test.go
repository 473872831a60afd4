package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restful-api/internal/apperr"
)

func TestResolveError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("name is required"), http.StatusBadRequest, "validation_failed"},
		{"conflict", apperr.Conflict("username already taken", nil), http.StatusConflict, "conflict"},
		{"credentials", &apperr.Error{Kind: apperr.ErrInvalidCredentials, Msg: "bad"}, http.StatusUnauthorized, "invalid_credentials"},
		{"refresh", apperr.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token"},
		{"not found", apperr.NotFound("employee 1 not found"), http.StatusNotFound, "not_found"},
		{"storage", apperr.Storage("create employee failed", errors.New("disk full")), http.StatusInternalServerError, "storage_failure"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{"echo", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate_limited"},
		{"echo forbidden", echo.NewHTTPError(http.StatusForbidden, "forbidden"), http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := resolveError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestHTTPErrorHandler_DetailsHiddenInProduction(t *testing.T) {
	cause := apperr.Storage("create employee failed", errors.New("disk full"))

	for _, production := range []bool{false, true} {
		e := echo.New()
		e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop(), production)
		e.GET("/x", func(echo.Context) error { return cause })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal error", body.Message)
		if production {
			assert.Empty(t, body.Details)
		} else {
			assert.Contains(t, body.Details, "disk full")
		}
	}
}
