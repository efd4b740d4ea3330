package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
)

// Chat is the persisted conversation between an agent and a counterparty.
type Chat struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Title         string `gorm:"size:255"`
	ContextID     string `gorm:"size:255;not null"`
	WhatsappPhone string `gorm:"size:64;not null;uniqueIndex:uq_chats_agent_phone"`
	UserName      string `gorm:"size:255"`
	WorkspaceID   string `gorm:"type:uuid;not null"`
	AgentID       string `gorm:"type:uuid;not null;uniqueIndex:uq_chats_agent_phone"`
	UnreadCount   int    `gorm:"not null;default:0"`
	Read          bool   `gorm:"not null"`
	HumanTalk     bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// BeforeCreate assigns a primary key when missing.
func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// EtoD converts the entity to the domain chat.
func (c *Chat) EtoD() *conversation.Chat {
	return &conversation.Chat{
		ID:            c.ID,
		Title:         c.Title,
		ContextID:     c.ContextID,
		WhatsappPhone: c.WhatsappPhone,
		UserName:      c.UserName,
		WorkspaceID:   c.WorkspaceID,
		AgentID:       c.AgentID,
		UnreadCount:   c.UnreadCount,
		Read:          c.Read,
		HumanTalk:     c.HumanTalk,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// NewChat converts a domain chat to its entity.
func NewChat(c *conversation.Chat) *Chat {
	return &Chat{
		ID:            c.ID,
		Title:         c.Title,
		ContextID:     c.ContextID,
		WhatsappPhone: c.WhatsappPhone,
		UserName:      c.UserName,
		WorkspaceID:   c.WorkspaceID,
		AgentID:       c.AgentID,
		UnreadCount:   c.UnreadCount,
		Read:          c.Read,
		HumanTalk:     c.HumanTalk,
	}
}

// Interaction marks automated processing for a chat.
type Interaction struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	WorkspaceID string `gorm:"type:uuid;not null"`
	AgentID     string `gorm:"type:uuid;not null"`
	ChatID      string `gorm:"type:uuid;not null;index"`
	Status      string `gorm:"size:20;not null"`
	CreatedAt   time.Time
}

// TableName specifies the table name for Interaction.
func (Interaction) TableName() string {
	return "interactions"
}

// BeforeCreate assigns a primary key when missing.
func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// NewInteraction converts a domain interaction to its entity.
func NewInteraction(i *conversation.Interaction) *Interaction {
	return &Interaction{
		ID:          i.ID,
		WorkspaceID: i.WorkspaceID,
		AgentID:     i.AgentID,
		ChatID:      i.ChatID,
		Status:      string(i.Status),
	}
}

// Message is one persisted chat turn.
type Message struct {
	ID                string `gorm:"type:uuid;primaryKey"`
	ChatID            string `gorm:"type:uuid;not null;index"`
	Text              string `gorm:"type:text"`
	Role              string `gorm:"size:20;not null"`
	Type              string `gorm:"size:100"`
	UserName          string `gorm:"size:255"`
	WhatsappMessageID string `gorm:"size:255"`
	WhatsappTimestamp *int64
	SentToEvolution   bool `gorm:"not null;default:false"`
	SentAt            *time.Time
	FailedAt          *time.Time
	FailReason        *string `gorm:"type:text"`
	CreatedAt         time.Time
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a primary key when missing.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// EtoD converts the entity to the domain message.
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:                m.ID,
		ChatID:            m.ChatID,
		Text:              m.Text,
		Role:              conversation.Role(m.Role),
		Type:              m.Type,
		UserName:          m.UserName,
		WhatsappMessageID: m.WhatsappMessageID,
		WhatsappTimestamp: m.WhatsappTimestamp,
		SentToEvolution:   m.SentToEvolution,
		SentAt:            m.SentAt,
		FailedAt:          m.FailedAt,
		FailReason:        m.FailReason,
		CreatedAt:         m.CreatedAt,
	}
}

// NewMessage converts a domain message to its entity.
func NewMessage(m *conversation.Message) *Message {
	return &Message{
		ID:                m.ID,
		ChatID:            m.ChatID,
		Text:              m.Text,
		Role:              string(m.Role),
		Type:              m.Type,
		UserName:          m.UserName,
		WhatsappMessageID: m.WhatsappMessageID,
		WhatsappTimestamp: m.WhatsappTimestamp,
		SentToEvolution:   m.SentToEvolution,
		SentAt:            m.SentAt,
		FailedAt:          m.FailedAt,
		FailReason:        m.FailReason,
	}
}
