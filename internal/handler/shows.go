package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
)

// ShowHandler serves /shows.
type ShowHandler struct {
	Shows *service.ShowService
}

func NewShowHandler(shows *service.ShowService) *ShowHandler {
	if shows == nil {
		panic("nil service passed to NewShowHandler")
	}
	return &ShowHandler{Shows: shows}
}

type createShowRequest struct {
	MovieTitle     string           `json:"movieTitle" validate:"notblank"`
	TheatreID      uint64           `json:"theatreId" validate:"required"`
	Date           string           `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string           `json:"time" validate:"required,datetime=15:04"`
	Price          *decimal.Decimal `json:"price" validate:"required"`
	SeatsAvailable *int             `json:"seatsAvailable" validate:"required,gte=0,lte=1000000"`
	Language       string           `json:"language"`
	Screen         string           `json:"screen"`
}

// updateShowRequest accepts seatsAvailable and capacity; both are applied
// through the inventory manager, never written directly.
type updateShowRequest struct {
	MovieTitle     *string          `json:"movieTitle" validate:"omitempty,notblank"`
	TheatreID      *uint64          `json:"theatreId" validate:"omitempty,gt=0"`
	Date           *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time           *string          `json:"time" validate:"omitempty,datetime=15:04"`
	Price          *decimal.Decimal `json:"price"`
	SeatsAvailable *int             `json:"seatsAvailable" validate:"omitempty,gte=0,lte=1000000"`
	Capacity       *int             `json:"capacity" validate:"omitempty,gte=0,lte=1000000"`
	Language       *string          `json:"language"`
	Screen         *string          `json:"screen"`
}

// List handles GET /shows?theatreId=&movieTitle=&date=&futureOnly=.
func (h *ShowHandler) List(c echo.Context) error {
	theatreID, err := queryID(c, "theatreId")
	if err != nil {
		return respondError(c, err)
	}
	futureOnly, err := queryBool(c, "futureOnly")
	if err != nil {
		return respondError(c, err)
	}
	shows, err := h.Shows.List(c.Request().Context(), model.ShowFilter{
		TheatreID:  theatreID,
		MovieTitle: c.QueryParam("movieTitle"),
		Date:       c.QueryParam("date"),
		FutureOnly: futureOnly,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, shows)
}

func (h *ShowHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	sh, err := h.Shows.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *ShowHandler) Create(c echo.Context) error {
	var req createShowRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	sh, err := h.Shows.Create(c.Request().Context(), model.ShowInput{
		MovieTitle:     req.MovieTitle,
		TheatreID:      req.TheatreID,
		Date:           req.Date,
		Time:           req.Time,
		Price:          *req.Price,
		SeatsAvailable: *req.SeatsAvailable,
		Language:       req.Language,
		Screen:         req.Screen,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sh)
}

func (h *ShowHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateShowRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.Price != nil && req.Price.IsNegative() {
		return respondError(c, model.Invalid("price must not be negative"))
	}
	sh, err := h.Shows.Update(c.Request().Context(), id, model.ShowPatch{
		MovieTitle:     req.MovieTitle,
		TheatreID:      req.TheatreID,
		Date:           req.Date,
		Time:           req.Time,
		Price:          req.Price,
		SeatsAvailable: req.SeatsAvailable,
		Capacity:       req.Capacity,
		Language:       req.Language,
		Screen:         req.Screen,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *ShowHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Shows.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
