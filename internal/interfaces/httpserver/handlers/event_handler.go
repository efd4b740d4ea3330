package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/responses"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

// EventHandler exposes stored webhook events for inspection.
type EventHandler struct {
	events EventReader
	log    zerolog.Logger
}

// NewEventHandler constructs the handler.
func NewEventHandler(events EventReader, log zerolog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		log:    log.With().Str("handler", "event").Logger(),
	}
}

// Get handles GET /v1/webhook-events/:event_id
// @Summary Get a webhook event
// @Description Returns the stored event with its processing outcome
// @Tags Webhooks
// @Produce json
// @Param event_id path string true "Webhook event ID"
// @Success 200 {object} responses.WebhookEventResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Failure 500 {object} platformerrors.HTTPErrorResponse
// @Router /v1/webhook-events/{event_id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	eventID := c.Param("event_id")

	ev, err := h.events.Find(c.Request.Context(), eventID)
	if errors.Is(err, event.ErrNotFound) || platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) || (err == nil && ev == nil) {
		platformerrors.WriteNotFound(c, "webhook event not found")
		return
	}
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.FromEvent(ev))
}
