package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/responses"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

// WebhookHandler accepts provider callbacks.
type WebhookHandler struct {
	processor WebhookProcessor
	log       zerolog.Logger
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(processor WebhookProcessor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		log:       log.With().Str("handler", "webhook").Logger(),
	}
}

// Receive handles POST /webhooks/evolution
// @Summary Receive an Evolution API webhook
// @Description Stores the callback and runs the reply pipeline. success is false only when the event could not be stored or resolved.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param payload body map[string]interface{} true "Evolution API webhook envelope"
// @Success 200 {object} responses.WebhookAck
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Router /webhooks/evolution [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("rejecting non-JSON webhook body")
		platformerrors.WriteValidationError(c, "request body must be a JSON object")
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}

	result := h.processor.HandleWebhook(c.Request.Context(), payload)
	if !result.Success {
		h.log.Error().Str("event_id", result.EventID).Str("status", string(result.Status)).Msg("webhook processing failed")
	}

	c.JSON(http.StatusOK, responses.WebhookAck{Success: result.Success})
}
