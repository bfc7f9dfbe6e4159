package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/conversation"
	"github.com/toolgate/toolgate/internal/session"
)

// PromptHandler serves POST /prompt, the single conversational entry point.
type PromptHandler struct {
	service *conversation.Service
	logger  *slog.Logger
}

// PromptRequest is the body for POST /prompt. While the conversation is
// awaiting an approval, UserInput is consumed as the yes/no answer.
type PromptRequest struct {
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id"`
}

// PromptResponse carries the assistant's answer or an approval prompt.
type PromptResponse struct {
	ConversationID string        `json:"conversation_id"`
	Response       string        `json:"response"`
	State          session.State `json:"state"`
}

// NewPromptHandler creates a prompt handler.
func NewPromptHandler(log *slog.Logger, service *conversation.Service) *PromptHandler {
	return &PromptHandler{
		service: service,
		logger:  log.With(slog.String("handler", "prompt")),
	}
}

// Register mounts POST /prompt on the Echo instance.
func (h *PromptHandler) Register(e *echo.Echo) {
	e.POST("/prompt", h.Prompt)
}

// Prompt godoc
// @Summary Submit a conversation turn
// @Description Send user input for a conversation and receive the final answer or an approval prompt. While an approval is pending, the input is interpreted as the yes/no answer.
// @Tags prompt
// @Accept json
// @Produce json
// @Param payload body PromptRequest true "Prompt request"
// @Success 200 {object} PromptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /prompt [post]
func (h *PromptHandler) Prompt(c echo.Context) error {
	if h.service == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "conversation service not configured")
	}

	var req PromptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.UserInput) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_input is required")
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	if strings.Contains(strings.ToLower(req.UserInput), "<script>") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input: html injection detected")
	}

	res, err := h.service.SubmitTurn(c.Request().Context(), req.ConversationID, req.UserInput)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyConversationID) || errors.Is(err, conversation.ErrEmptyUserText) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("turn failed",
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err),
		)
		// Backend and transport failures are turn-fatal; the session is
		// resumable by resubmitting.
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, PromptResponse{
		ConversationID: strings.TrimSpace(req.ConversationID),
		Response:       res.Response,
		State:          res.State,
	})
}
