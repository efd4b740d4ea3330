package responses

import (
	"time"

	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

// WebhookAck is returned to the provider for every accepted callback.
type WebhookAck struct {
	Success bool `json:"success"`
}

// ErrorMessage is a plain error body.
type ErrorMessage struct {
	Message string `json:"message"`
}

// DeliveryResponse reports the classified result of a test send.
type DeliveryResponse struct {
	Outcome           string `json:"outcome"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Reason            string `json:"reason,omitempty"`
	State             string `json:"state,omitempty"`
	Raw               string `json:"raw,omitempty"`
}

// FromOutcome maps a delivery outcome to its DTO.
func FromOutcome(outcome delivery.Outcome) DeliveryResponse {
	resp := DeliveryResponse{Outcome: outcome.Label()}
	switch o := outcome.(type) {
	case delivery.Success:
		resp.ProviderMessageID = o.ProviderMessageID
	case delivery.Failure:
		resp.Reason = o.Reason
		resp.State = o.State
	case delivery.Ambiguous:
		resp.Reason = delivery.ReasonAmbiguousResponse
		resp.Raw = o.RawDescription
	}
	return resp
}

// WebhookEventResponse exposes a stored event and its processing outcome.
type WebhookEventResponse struct {
	ID               string         `json:"id"`
	Event            string         `json:"event"`
	Instance         string         `json:"instance"`
	InstanceID       string         `json:"instance_id,omitempty"`
	ChannelID        *string        `json:"channel_id,omitempty"`
	RemoteJID        string         `json:"remote_jid,omitempty"`
	FromMe           bool           `json:"from_me"`
	MessageID        string         `json:"message_id,omitempty"`
	PushName         string         `json:"push_name,omitempty"`
	MessageType      string         `json:"message_type,omitempty"`
	MessageContent   string         `json:"message_content,omitempty"`
	MessageTimestamp int64          `json:"message_timestamp,omitempty"`
	RawData          map[string]any `json:"raw_data"`
	Redacted         bool           `json:"redacted"`
	Processed        bool           `json:"processed"`
	ProcessedAt      *int64         `json:"processed_at,omitempty"`
	Error            *string        `json:"error,omitempty"`
	RelatedMessageID *string        `json:"related_message_id,omitempty"`
	Attempts         int            `json:"attempts"`
	CreatedAt        int64          `json:"created_at"`
}

// FromEvent maps the domain event to its DTO.
func FromEvent(ev *event.WebhookEvent) WebhookEventResponse {
	return WebhookEventResponse{
		ID:               ev.ID,
		Event:            ev.Event,
		Instance:         ev.Instance,
		InstanceID:       ev.InstanceID,
		ChannelID:        ev.ChannelID,
		RemoteJID:        ev.RemoteJID,
		FromMe:           ev.FromMe,
		MessageID:        ev.MessageID,
		PushName:         ev.PushName,
		MessageType:      ev.MessageType,
		MessageContent:   ev.MessageContent,
		MessageTimestamp: ev.MessageTimestamp,
		RawData:          ev.RawData,
		Redacted:         ev.IsRedacted(),
		Processed:        ev.Processed,
		ProcessedAt:      unixPtr(ev.ProcessedAt),
		Error:            ev.Error,
		RelatedMessageID: ev.RelatedMessageID,
		Attempts:         ev.Attempts,
		CreatedAt:        ev.CreatedAt.Unix(),
	}
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}
