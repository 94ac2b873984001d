package middleware

import "github.com/labstack/echo/v4"

// Subject returns the caller recorded by JWTAuth, or "anon" for requests
// that carried no token.
func Subject(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
