package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/mcp"
)

// PingHandler serves liveness and readiness probes.
type PingHandler struct {
	router *mcp.Router
	logger *slog.Logger
}

// NewPingHandler creates a ping handler. A nil router leaves the readiness
// probe permanently green.
func NewPingHandler(log *slog.Logger, router *mcp.Router) *PingHandler {
	return &PingHandler{
		router: router,
		logger: log.With(slog.String("handler", "ping")),
	}
}

// Register mounts the probe routes on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/healthz/live", h.Live)
	e.GET("/healthz/ready", h.Ready)
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// PingHead returns 200 No Content for health checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Live reports process liveness.
func (h *PingHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready reports 200 once the tool catalog is loaded, 503 before that so load
// balancers hold traffic until the MCP servers answered their first listing.
func (h *PingHandler) Ready(c echo.Context) error {
	if h.router != nil {
		if err := h.router.Ready(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
		}
	}
	return c.String(http.StatusOK, "OK")
}
