package event

import (
	"time"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
)

// RedactionKey marks a raw payload that was replaced because it exceeded storage limits.
const RedactionKey = "message_too_large"

// RedactionMarker returns the payload stored instead of an oversized one.
func RedactionMarker() map[string]any {
	return map[string]any{RedactionKey: true}
}

// WebhookEvent is the durable record of one inbound provider callback.
type WebhookEvent struct {
	ID               string           `json:"id"`
	Event            string           `json:"event"`
	Instance         string           `json:"instance"`
	InstanceID       string           `json:"instance_id"`
	RawData          map[string]any   `json:"raw_data"`
	RemoteJID        string           `json:"remote_jid"`
	FromMe           bool             `json:"from_me"`
	MessageID        string           `json:"message_id"`
	PushName         string           `json:"push_name"`
	MessageType      string           `json:"message_type"`
	MessageContent   string           `json:"message_content"`
	MessageTimestamp int64            `json:"message_timestamp"`
	DateTime         time.Time        `json:"date_time"`
	Destination      string           `json:"destination"`
	Sender           string           `json:"sender"`
	ServerURL        string           `json:"server_url"`
	APIKey           string           `json:"-"`
	Processed        bool             `json:"processed"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	Error            *string          `json:"error,omitempty"`
	ChannelID        *string          `json:"channel_id,omitempty"`
	Channel          *channel.Channel `json:"-"`
	RelatedMessageID *string          `json:"related_message_id,omitempty"`
	Attempts         int              `json:"attempts"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsRedacted reports whether the raw payload was replaced by the redaction marker.
func (e *WebhookEvent) IsRedacted() bool {
	v, ok := e.RawData[RedactionKey].(bool)
	return ok && v && len(e.RawData) == 1
}

// Agent returns the channel's agent, if loaded.
func (e *WebhookEvent) Agent() *channel.Agent {
	if e.Channel == nil {
		return nil
	}
	return e.Channel.Agent
}

// ProcessingUpdate is the terminal state written when processing stops.
type ProcessingUpdate struct {
	Error            *string
	RelatedMessageID *string
	ProcessedAt      time.Time
}
