package conversation

import (
	"context"
	"errors"
)

var (
	// ErrChatExists is returned when a concurrent request created the same chat first.
	ErrChatExists = errors.New("chat already exists for agent and phone")
	// ErrMessageNotFound is returned when a message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// Repository persists chats, interactions and messages.
type Repository interface {
	// FindChat returns nil, nil when no chat exists for the pair.
	FindChat(ctx context.Context, agentID, phone string) (*Chat, error)
	// CreateChatWithInteraction stores both records atomically and fills their ids.
	CreateChatWithInteraction(ctx context.Context, chat *Chat, interaction *Interaction) error
	CreateMessage(ctx context.Context, msg *Message) error
	FindMessage(ctx context.Context, id string) (*Message, error)
	// IncrementUnread atomically bumps the unread counter and clears read.
	IncrementUnread(ctx context.Context, chatID string) error
	UpdateDelivery(ctx context.Context, messageID string, record DeliveryRecord) error
}
