package webhook

import (
	"context"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
)

// EventMessageReceived is sent after an inbound message is recorded.
const EventMessageReceived = "message.received"

// Service notifies agents about conversation activity.
type Service interface {
	// NotifyNewMessage posts the recorded inbound message to the agent's on_new_message_url.
	NotifyNewMessage(ctx context.Context, agent *channel.Agent, chat *conversation.Chat, message *conversation.Message) error
}

// Payload is the structure sent to agent webhook URLs.
type Payload struct {
	Event         string `json:"event"`
	AgentID       string `json:"agent_id"`
	ChatID        string `json:"chat_id"`
	MessageID     string `json:"message_id"`
	Text          string `json:"text"`
	WhatsappPhone string `json:"whatsapp_phone,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
