package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/mcp"
	"github.com/toolgate/toolgate/internal/policy"
)

// ToolsHandler lists the tools advertised by the connected MCP servers.
type ToolsHandler struct {
	router   *mcp.Router
	governor *governor.Service
	logger   *slog.Logger
}

// ToolInfo is one advertised tool with the policy that governs it.
type ToolInfo struct {
	mcp.Tool
	Policy policy.ToolPolicy `json:"policy"`
}

// ToolsResponse is the body for GET /tools.
type ToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// NewToolsHandler creates a tools handler.
func NewToolsHandler(log *slog.Logger, router *mcp.Router, gov *governor.Service) *ToolsHandler {
	return &ToolsHandler{
		router:   router,
		governor: gov,
		logger:   log.With(slog.String("handler", "tools")),
	}
}

// Register mounts GET /tools on the Echo instance.
func (h *ToolsHandler) Register(e *echo.Echo) {
	e.GET("/tools", h.List)
}

// List godoc
// @Summary List tools
// @Description Tools advertised by the connected MCP servers, annotated with their effective policy
// @Tags tools
// @Success 200 {object} ToolsResponse
// @Failure 500 {object} ErrorResponse
// @Router /tools [get]
func (h *ToolsHandler) List(c echo.Context) error {
	if h.router == nil || h.governor == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "tool router not configured")
	}
	catalog := h.router.Tools()
	tools := make([]ToolInfo, 0, len(catalog))
	for _, tool := range catalog {
		tools = append(tools, ToolInfo{Tool: tool, Policy: h.governor.PolicyFor(tool.Name)})
	}
	return c.JSON(http.StatusOK, ToolsResponse{Tools: tools})
}
