package conversation

import (
	"fmt"
	"time"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
)

// Role indicates who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageTypeConversation is the type stored on generated replies.
const MessageTypeConversation = "conversation"

// InteractionStatus tracks automated processing for a chat.
type InteractionStatus string

const (
	InteractionStatusRunning InteractionStatus = "RUNNING"
)

// Chat is a conversation between one agent and one counterparty.
type Chat struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ContextID     string    `json:"context_id"`
	WhatsappPhone string    `json:"whatsapp_phone"`
	UserName      string    `json:"user_name"`
	WorkspaceID   string    `json:"workspace_id"`
	AgentID       string    `json:"agent_id"`
	UnreadCount   int       `json:"unread_count"`
	Read          bool      `json:"read"`
	HumanTalk     bool      `json:"human_talk"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Interaction marks that automated processing is active for a chat.
type Interaction struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	AgentID     string            `json:"agent_id"`
	ChatID      string            `json:"chat_id"`
	Status      InteractionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Message is one turn in a chat.
type Message struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chat_id"`
	Text              string     `json:"text"`
	Role              Role       `json:"role"`
	Type              string     `json:"type"`
	UserName          string     `json:"user_name,omitempty"`
	WhatsappMessageID string     `json:"whatsapp_message_id,omitempty"`
	WhatsappTimestamp *int64     `json:"whatsapp_timestamp,omitempty"`
	SentToEvolution   bool       `json:"sent_to_evolution"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	FailReason        *string    `json:"fail_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// DeliveryRecord is the single delivery outcome written onto an outbound message.
type DeliveryRecord struct {
	Sent              bool
	SentAt            *time.Time
	FailedAt          *time.Time
	FailReason        *string
	ProviderMessageID *string
}

// ContextKey returns the stable context key for a counterparty phone.
func ContextKey(phone string) string {
	return fmt.Sprintf("whatsapp-%s", phone)
}

// NewChat builds a chat for a first inbound message from phone.
func NewChat(agent *channel.Agent, phone, displayName string) *Chat {
	userName := displayName
	if userName == "" {
		userName = phone
	}
	now := time.Now().UTC()
	return &Chat{
		Title:         fmt.Sprintf("Chat with %s", phone),
		ContextID:     ContextKey(phone),
		WhatsappPhone: phone,
		UserName:      userName,
		WorkspaceID:   agent.WorkspaceID,
		AgentID:       agent.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewInteraction builds the RUNNING interaction created with a chat.
func NewInteraction(chat *Chat) *Interaction {
	return &Interaction{
		WorkspaceID: chat.WorkspaceID,
		AgentID:     chat.AgentID,
		ChatID:      chat.ID,
		Status:      InteractionStatusRunning,
		CreatedAt:   time.Now().UTC(),
	}
}
