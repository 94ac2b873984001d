package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the process is up.  It returns a plain
// text "ok" with status 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Check probes one optional dependency such as MySQL or Redis.
type Check func(ctx context.Context) error

// ReadyHandler reports the state of every configured dependency.
type ReadyHandler struct {
	Checks  map[string]Check
	Timeout time.Duration
}

// Ready handles GET /readyz.  It answers 200 when every check passes and
// 503 with the failing checks otherwise.
func (h *ReadyHandler) Ready(c echo.Context) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	result := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	return c.JSON(status, echo.Map{"checks": result})
}
