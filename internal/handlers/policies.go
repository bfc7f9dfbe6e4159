package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/policy"
)

// PoliciesHandler exposes the effective governance table for inspection.
type PoliciesHandler struct {
	governor *governor.Service
	logger   *slog.Logger
}

// PoliciesResponse is the body for GET /policies.
type PoliciesResponse struct {
	Default policy.ToolPolicy `json:"default"`
	Tools   []policy.Entry    `json:"tools"`
}

// NewPoliciesHandler creates a policies handler.
func NewPoliciesHandler(log *slog.Logger, gov *governor.Service) *PoliciesHandler {
	return &PoliciesHandler{
		governor: gov,
		logger:   log.With(slog.String("handler", "policies")),
	}
}

// Register mounts GET /policies on the Echo instance.
func (h *PoliciesHandler) Register(e *echo.Echo) {
	e.GET("/policies", h.List)
}

// List godoc
// @Summary List policies
// @Description Effective governance table: the fallback policy plus every explicitly configured tool
// @Tags policies
// @Success 200 {object} PoliciesResponse
// @Failure 500 {object} ErrorResponse
// @Router /policies [get]
func (h *PoliciesHandler) List(c echo.Context) error {
	if h.governor == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "governor not configured")
	}
	fallback, entries := h.governor.Policies()
	if entries == nil {
		entries = []policy.Entry{}
	}
	return c.JSON(http.StatusOK, PoliciesResponse{Default: fallback, Tools: entries})
}
