package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/conversation"
	"github.com/toolgate/toolgate/internal/session"
)

// HistoryHandler serves conversation transcript reads and deletion.
type HistoryHandler struct {
	service *conversation.Service
	logger  *slog.Logger
}

// HistoryResponse is the full persisted transcript of one conversation.
type HistoryResponse struct {
	ConversationID string            `json:"conversation_id"`
	State          session.State     `json:"state"`
	Messages       []session.Message `json:"messages"`
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(log *slog.Logger, service *conversation.Service) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  log.With(slog.String("handler", "history")),
	}
}

// Register mounts the conversation routes on the Echo instance.
func (h *HistoryHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations/:id")
	group.GET("/history", h.Get)
	group.DELETE("", h.Delete)
}

// Get godoc
// @Summary Get conversation history
// @Description Return the full persisted transcript and state for a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} HistoryResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /conversations/{id}/history [get]
func (h *HistoryHandler) Get(c echo.Context) error {
	id := c.Param("id")
	messages, state, err := h.service.History(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		if errors.Is(err, conversation.ErrEmptyConversationID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, HistoryResponse{
		ConversationID: id,
		State:          state,
		Messages:       messages,
	})
}

// Delete godoc
// @Summary Delete a conversation
// @Description Drop a conversation's durable record, including any pending approval
// @Tags conversations
// @Param id path string true "Conversation ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /conversations/{id} [delete]
func (h *HistoryHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, conversation.ErrEmptyConversationID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
