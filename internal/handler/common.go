// Package handler translates HTTP requests into service calls and service
// errors into status codes.  Bodies are bound with echo's binder and checked
// with the registered validator before any domain logic runs.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicate),
		errors.Is(err, model.ErrInsufficientSeats),
		errors.Is(err, model.ErrPastDate),
		errors.Is(err, model.ErrReferenced),
		errors.Is(err, model.ErrBookingCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the status matching err.  Internal
// errors are logged and hidden from the client.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorj(log.JSON{
			"msg":    "request failed",
			"method": c.Request().Method,
			"path":   c.Path(),
			"error":  err.Error(),
		})
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bindAndValidate decodes the request body into dst and runs the validator.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return model.Invalid("invalid request body")
	}
	return c.Validate(dst)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, model.Invalid("invalid %s", name)
	}
	return id, nil
}

// queryID reads an optional positive integer query parameter; absent
// means zero.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, model.Invalid("invalid %s", name)
	}
	return id, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.Invalid("invalid %s", name)
	}
	return b, nil
}
