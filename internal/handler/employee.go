package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/repository"
)

// EmployeeHandler exposes the cached employee repository over CRUD routes.
type EmployeeHandler struct {
	repo *repository.EmployeeRepo
}

func NewEmployeeHandler(repo *repository.EmployeeRepo) *EmployeeHandler {
	return &EmployeeHandler{repo: repo}
}

// List: GET /v1/employees
func (h *EmployeeHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.repo.GetAll(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// Get: GET /v1/employees/:id
func (h *EmployeeHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	e, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// Create: POST /v1/employees
func (h *EmployeeHandler) Create(c echo.Context) error {
	var e model.Employee
	if err := bindAndValidate(c, &e); err != nil {
		return err
	}
	e.ID = 0

	ctx, cancel := requestContext(c)
	defer cancel()

	created, err := h.repo.Create(ctx, e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// Update: PUT /v1/employees/:id replaces every field.
func (h *EmployeeHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var e model.Employee
	if err := bindAndValidate(c, &e); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.repo.Update(ctx, id, e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete: DELETE /v1/employees/:id returns the removed record.
func (h *EmployeeHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	prior, err := h.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prior)
}
