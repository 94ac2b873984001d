// Package router maps URLs onto handlers and attaches per-group middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-inventory/internal/handler"
	"github.com/iliyamo/cinema-booking-inventory/internal/middleware"
	"github.com/iliyamo/cinema-booking-inventory/internal/utils"
)

// Handlers bundles the resource handlers served under /v1.
type Handlers struct {
	Users    *handler.UserHandler
	Theatres *handler.TheatreHandler
	Shows    *handler.ShowHandler
	Bookings *handler.BookingHandler
	Ready    *handler.ReadyHandler
}

// Options carries the optional cross-cutting middleware.  Nil entries are
// skipped; an empty JWTSecret leaves writes unauthenticated.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes wires the health probes at the root and the API under /v1.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready.Ready)
	}

	var mws []echo.MiddlewareFunc
	if opts.RateLimit != nil {
		mws = append(mws, opts.RateLimit)
	}
	if opts.JWTSecret != "" {
		mws = append(mws, middleware.WritesOnly(
			middleware.JWTAuth(opts.JWTSecret),
			middleware.RequireRole(utils.RoleAdmin),
		))
	}
	// the cache sits after auth so rejected writes never bump its generation
	if opts.Cache != nil {
		mws = append(mws, opts.Cache)
	}
	v1 := e.Group("/v1", mws...)

	registerUsers(v1, h.Users)
	registerTheatres(v1, h.Theatres)
	registerShows(v1, h.Shows)
	registerBookings(v1, h.Bookings)
}
