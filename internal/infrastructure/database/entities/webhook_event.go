package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

// WebhookEvent is the persisted provider callback.
type WebhookEvent struct {
	ID               string            `gorm:"type:uuid;primaryKey"`
	Event            string            `gorm:"size:100;not null"`
	Instance         string            `gorm:"size:255"`
	InstanceID       string            `gorm:"size:255"`
	RawData          datatypes.JSONMap `gorm:"type:jsonb"`
	RemoteJID        string            `gorm:"column:remote_jid;size:255"`
	FromMe           bool
	MessageID        string `gorm:"size:255"`
	PushName         string `gorm:"size:255"`
	MessageType      string `gorm:"size:100"`
	MessageContent   string `gorm:"type:text"`
	MessageTimestamp int64
	DateTime         time.Time
	Destination      string `gorm:"type:text"`
	Sender           string `gorm:"size:255"`
	ServerURL        string `gorm:"column:server_url;type:text"`
	APIKey           string `gorm:"column:api_key;type:text"`
	Processed        bool   `gorm:"not null;default:false"`
	ProcessedAt      *time.Time
	Error            *string  `gorm:"type:text"`
	ChannelID        *string  `gorm:"type:uuid;index"`
	Channel          *Channel `gorm:"foreignKey:ChannelID"`
	RelatedMessageID *string  `gorm:"type:uuid"`
	Attempts         int      `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName specifies the table name for WebhookEvent.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// BeforeCreate assigns a primary key when missing.
func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// EtoD converts the entity to the domain event.
func (e *WebhookEvent) EtoD() *event.WebhookEvent {
	out := &event.WebhookEvent{
		ID:               e.ID,
		Event:            e.Event,
		Instance:         e.Instance,
		InstanceID:       e.InstanceID,
		RawData:          map[string]any(e.RawData),
		RemoteJID:        e.RemoteJID,
		FromMe:           e.FromMe,
		MessageID:        e.MessageID,
		PushName:         e.PushName,
		MessageType:      e.MessageType,
		MessageContent:   e.MessageContent,
		MessageTimestamp: e.MessageTimestamp,
		DateTime:         e.DateTime,
		Destination:      e.Destination,
		Sender:           e.Sender,
		ServerURL:        e.ServerURL,
		APIKey:           e.APIKey,
		Processed:        e.Processed,
		ProcessedAt:      e.ProcessedAt,
		Error:            e.Error,
		ChannelID:        e.ChannelID,
		RelatedMessageID: e.RelatedMessageID,
		Attempts:         e.Attempts,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if e.Channel != nil {
		out.Channel = e.Channel.EtoD()
	}
	return out
}

// NewWebhookEvent converts a domain event to its entity.
func NewWebhookEvent(ev *event.WebhookEvent) *WebhookEvent {
	return &WebhookEvent{
		ID:               ev.ID,
		Event:            ev.Event,
		Instance:         ev.Instance,
		InstanceID:       ev.InstanceID,
		RawData:          datatypes.JSONMap(ev.RawData),
		RemoteJID:        ev.RemoteJID,
		FromMe:           ev.FromMe,
		MessageID:        ev.MessageID,
		PushName:         ev.PushName,
		MessageType:      ev.MessageType,
		MessageContent:   ev.MessageContent,
		MessageTimestamp: ev.MessageTimestamp,
		DateTime:         ev.DateTime,
		Destination:      ev.Destination,
		Sender:           ev.Sender,
		ServerURL:        ev.ServerURL,
		APIKey:           ev.APIKey,
		Processed:        ev.Processed,
		ProcessedAt:      ev.ProcessedAt,
		Error:            ev.Error,
		ChannelID:        ev.ChannelID,
		RelatedMessageID: ev.RelatedMessageID,
		Attempts:         ev.Attempts,
	}
}
