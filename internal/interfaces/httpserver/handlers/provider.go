package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/pipeline"
)

// WebhookProcessor runs the inbound pipeline for one provider callback.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload map[string]any) pipeline.Result
	SendTestMessage(ctx context.Context, agentID, phone, text string) (delivery.Outcome, error)
}

// EventReader loads stored webhook events.
type EventReader interface {
	Find(ctx context.Context, id string) (*event.WebhookEvent, error)
}

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Webhook *WebhookHandler
	Agent   *AgentHandler
	Event   *EventHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(processor WebhookProcessor, events EventReader, log zerolog.Logger) *Provider {
	return &Provider{
		Webhook: NewWebhookHandler(processor, log),
		Agent:   NewAgentHandler(processor, log),
		Event:   NewEventHandler(events, log),
	}
}
