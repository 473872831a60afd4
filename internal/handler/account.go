package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/repository"
	"github.com/iliyamo/restful-api/internal/service"
)

// AccountHandler serves account administration for staff roles.
type AccountHandler struct {
	accounts *repository.AccountRepo
	svc      *service.CredentialService
}

func NewAccountHandler(accounts *repository.AccountRepo, svc *service.CredentialService) *AccountHandler {
	return &AccountHandler{accounts: accounts, svc: svc}
}

type roleReq struct {
	Role model.Role `json:"role" validate:"required,oneof=User Moderator Admin"`
}

// List: GET /v1/accounts
func (h *AccountHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.accounts.GetAll(ctx)
	if err != nil {
		return err
	}
	out := make([]model.Account, len(items))
	for i, a := range items {
		out[i] = a.Public()
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /v1/accounts/:id
func (h *AccountHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.Public())
}

// SetRole: PUT /v1/accounts/:id/role
func (h *AccountHandler) SetRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req roleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.svc.AssignRole(ctx, id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// Delete: DELETE /v1/accounts/:id
func (h *AccountHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.svc.DeleteAccount(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
