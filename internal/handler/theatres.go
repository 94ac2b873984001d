package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
)

// TheatreHandler serves /theatres.
type TheatreHandler struct {
	Theatres *service.TheatreService
}

func NewTheatreHandler(theatres *service.TheatreService) *TheatreHandler {
	if theatres == nil {
		panic("nil service passed to NewTheatreHandler")
	}
	return &TheatreHandler{Theatres: theatres}
}

type createTheatreRequest struct {
	Name       string `json:"name" validate:"notblank"`
	City       string `json:"city" validate:"notblank"`
	Address    string `json:"address" validate:"required,min=5"`
	TotalSeats int    `json:"totalSeats" validate:"gte=0"`
}

type updateTheatreRequest struct {
	Name       *string `json:"name" validate:"omitempty,notblank"`
	City       *string `json:"city" validate:"omitempty,notblank"`
	Address    *string `json:"address" validate:"omitempty,min=5"`
	TotalSeats *int    `json:"totalSeats" validate:"omitempty,gte=0"`
}

// List handles GET /theatres?city=.
func (h *TheatreHandler) List(c echo.Context) error {
	list := h.Theatres.List(c.Request().Context(), model.TheatreFilter{City: c.QueryParam("city")})
	return c.JSON(http.StatusOK, list)
}

func (h *TheatreHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.Theatres.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TheatreHandler) Create(c echo.Context) error {
	var req createTheatreRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.Theatres.Create(c.Request().Context(), model.TheatreInput{
		Name:       req.Name,
		City:       req.City,
		Address:    req.Address,
		TotalSeats: req.TotalSeats,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TheatreHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateTheatreRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.Theatres.Update(c.Request().Context(), id, model.TheatrePatch{
		Name:       req.Name,
		City:       req.City,
		Address:    req.Address,
		TotalSeats: req.TotalSeats,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TheatreHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Theatres.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
