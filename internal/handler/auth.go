package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/middleware"
	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/service"
)

// AuthHandler serves the /v1/auth endpoints and /v1/me.
type AuthHandler struct {
	svc *service.CredentialService
}

func NewAuthHandler(svc *service.CredentialService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// ----- DTOs -----

type loginReq struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type registerResp struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

type meResp struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Register: POST /v1/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	acc, err := h.svc.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, registerResp{ID: acc.ID, Username: acc.Username, Email: acc.Email, Role: acc.Role})
}

// Login: POST /v1/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.svc.Login(ctx, req.UsernameOrEmail, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh: POST /v1/auth/refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout: POST /v1/auth/logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll: POST /v1/auth/logout-all revokes every session of the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	id, err := claims.AccountID()
	if err != nil {
		return echo.ErrUnauthorized
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.svc.LogoutAll(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: GET /v1/me echoes the caller's access token claims.
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	resp := meResp{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return c.JSON(http.StatusOK, resp)
}
