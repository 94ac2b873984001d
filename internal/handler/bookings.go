package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
)

// BookingHandler serves /bookings.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

// createBookingRequest leaves seats unchecked here; the engine rejects
// counts below one with its own error.
type createBookingRequest struct {
	UserID        uint64           `json:"userId" validate:"required"`
	ShowID        uint64           `json:"showId" validate:"required"`
	Seats         *int             `json:"seats" validate:"required"`
	Status        string           `json:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED"`
	PricePerSeat  *decimal.Decimal `json:"pricePerSeat"`
	SeatsSelected []string         `json:"seatsSelected" validate:"omitempty,dive,notblank"`
}

type updateBookingRequest struct {
	UserID        *uint64          `json:"userId" validate:"omitempty,gt=0"`
	ShowID        *uint64          `json:"showId" validate:"omitempty,gt=0"`
	Seats         *int             `json:"seats"`
	Status        *string          `json:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED"`
	PricePerSeat  *decimal.Decimal `json:"pricePerSeat"`
	SeatsSelected []string         `json:"seatsSelected" validate:"omitempty,dive,notblank"`
}

// List handles GET /bookings?userId=&showId=&status=.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := queryID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	showID, err := queryID(c, "showId")
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.Bookings.List(c.Request().Context(), model.BookingFilter{
		UserID: userID,
		ShowID: showID,
		Status: model.BookingStatus(c.QueryParam("status")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Create handles POST /bookings.  An omitted status means CONFIRMED.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Create(c.Request().Context(), model.BookingInput{
		UserID:        req.UserID,
		ShowID:        req.ShowID,
		Seats:         *req.Seats,
		Status:        model.BookingStatus(req.Status),
		PricePerSeat:  req.PricePerSeat,
		SeatsSelected: req.SeatsSelected,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Update handles PATCH /bookings/:id.
func (h *BookingHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	patch := model.BookingPatch{
		UserID:        req.UserID,
		ShowID:        req.ShowID,
		Seats:         req.Seats,
		PricePerSeat:  req.PricePerSeat,
		SeatsSelected: req.SeatsSelected,
	}
	if req.Status != nil {
		st := model.BookingStatus(*req.Status)
		patch.Status = &st
	}
	b, err := h.Bookings.Update(c.Request().Context(), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Bookings.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
