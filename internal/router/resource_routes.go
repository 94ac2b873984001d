package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-inventory/internal/handler"
)

func registerUsers(g *echo.Group, u *handler.UserHandler) {
	g.GET("/users", u.List)
	g.POST("/users", u.Create)
	g.GET("/users/:id", u.Get)
	g.PATCH("/users/:id", u.Update)
	g.DELETE("/users/:id", u.Delete)
}

func registerTheatres(g *echo.Group, t *handler.TheatreHandler) {
	g.GET("/theatres", t.List)
	g.POST("/theatres", t.Create)
	g.GET("/theatres/:id", t.Get)
	g.PATCH("/theatres/:id", t.Update)
	g.DELETE("/theatres/:id", t.Delete)
}

func registerShows(g *echo.Group, s *handler.ShowHandler) {
	g.GET("/shows", s.List)
	g.POST("/shows", s.Create)
	g.GET("/shows/:id", s.Get)
	g.PATCH("/shows/:id", s.Update)
	g.DELETE("/shows/:id", s.Delete)
}

// registerBookings also exposes POST /bookings/:id/cancel next to
// PATCH {"status":"CANCELLED"}.
func registerBookings(g *echo.Group, b *handler.BookingHandler) {
	g.GET("/bookings", b.List)
	g.POST("/bookings", b.Create)
	g.GET("/bookings/:id", b.Get)
	g.PATCH("/bookings/:id", b.Update)
	g.DELETE("/bookings/:id", b.Delete)
	g.POST("/bookings/:id/cancel", b.Cancel)
}
