package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
)

// UserHandler serves /users.
type UserHandler struct {
	Users *service.UserService
}

// NewUserHandler panics on a nil service so wiring mistakes fail at startup.
func NewUserHandler(users *service.UserService) *UserHandler {
	if users == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{Users: users}
}

type createUserRequest struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"len=10,number"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,notblank"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,len=10,number"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// List handles GET /users?email=.
func (h *UserHandler) List(c echo.Context) error {
	users := h.Users.List(c.Request().Context(), model.UserFilter{Email: c.QueryParam("email")})
	return c.JSON(http.StatusOK, users)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Create handles POST /users.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.Create(c.Request().Context(), model.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Update handles PATCH /users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.Update(c.Request().Context(), id, model.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
