package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/pipeline"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/requests"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/responses"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

// AgentHandler exposes operator actions on agents.
type AgentHandler struct {
	processor WebhookProcessor
	log       zerolog.Logger
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(processor WebhookProcessor, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		processor: processor,
		log:       log.With().Str("handler", "agent").Logger(),
	}
}

// SendTestMessage handles POST /v1/agents/:agent_id/messages/test
// @Summary Send a test message
// @Description Sends a message through the agent's channel without creating a chat
// @Tags Agents
// @Accept json
// @Produce json
// @Param agent_id path string true "Agent ID"
// @Param request body requests.SendTestMessageRequest true "Test message"
// @Success 200 {object} responses.DeliveryResponse
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Failure 500 {object} platformerrors.HTTPErrorResponse
// @Router /v1/agents/{agent_id}/messages/test [post]
func (h *AgentHandler) SendTestMessage(c *gin.Context) {
	agentID := c.Param("agent_id")

	var req requests.SendTestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "phone and message are required")
		return
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Message) == "" {
		platformerrors.WriteValidationError(c, "phone and message are required")
		return
	}

	outcome, err := h.processor.SendTestMessage(c.Request.Context(), agentID, req.Phone, req.Message)
	switch {
	case errors.Is(err, pipeline.ErrAgentNotFound):
		platformerrors.WriteNotFound(c, "agent not found")
		return
	case errors.Is(err, pipeline.ErrAgentInactive):
		platformerrors.WriteValidationError(c, pipeline.TextAgentInactive)
		return
	case err != nil:
		platformerrors.WriteHTTPError(c, platformerrors.AsError(c.Request.Context(), platformerrors.LayerHandler, err, "failed to send test message"), h.log)
		return
	}

	c.JSON(http.StatusOK, responses.FromOutcome(outcome))
}
