// Package delivery sends outbound replies to the provider and records the outcome.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
)

// Sender is the provider send capability. The response is untyped at this boundary.
type Sender interface {
	SendMessage(ctx context.Context, agentID, address, text string) (map[string]any, error)
}

// Agent delivers outbound messages and records exactly one outcome per message.
type Agent struct {
	sender Sender
	repo   conversation.Repository
	sink   audit.Sink
	log    zerolog.Logger
	now    func() time.Time
}

// NewAgent creates a delivery agent.
func NewAgent(sender Sender, repo conversation.Repository, sink audit.Sink, log zerolog.Logger) *Agent {
	return &Agent{
		sender: sender,
		repo:   repo,
		sink:   sink,
		log:    log.With().Str("component", "delivery-agent").Logger(),
		now:    time.Now,
	}
}

// Deliver sends text to address. Transport errors become a Failure and never propagate.
func (a *Agent) Deliver(ctx context.Context, agentID, address, text string) Outcome {
	resp, err := a.sender.SendMessage(ctx, agentID, address, text)
	if err != nil {
		a.log.Error().Err(err).Str("agent_id", agentID).Msg("error sending message via provider")
		return Failure{Reason: fmt.Sprintf("API error: %s", err.Error())}
	}
	return Classify(resp)
}

// RecordFor maps an outcome onto the delivery fields of a message.
func RecordFor(outcome Outcome, at time.Time) conversation.DeliveryRecord {
	ts := at
	switch o := outcome.(type) {
	case Success:
		rec := conversation.DeliveryRecord{Sent: true, SentAt: &ts}
		if o.ProviderMessageID != "" {
			id := o.ProviderMessageID
			rec.ProviderMessageID = &id
		}
		return rec
	case Failure:
		reason := o.Reason
		if o.State != "" {
			reason = fmt.Sprintf("%s (instance state: %s)", reason, o.State)
		}
		return conversation.DeliveryRecord{Sent: false, FailedAt: &ts, FailReason: &reason}
	default:
		reason := ReasonAmbiguousResponse
		return conversation.DeliveryRecord{Sent: true, SentAt: &ts, FailReason: &reason}
	}
}

// Record writes the outcome on the outbound message. The write is detached from ctx
// cancellation so an attempt cut short by a disconnect or timeout is still recorded.
func (a *Agent) Record(ctx context.Context, messageID, channelID string, outcome Outcome) error {
	ctx = context.WithoutCancel(ctx)
	rec := RecordFor(outcome, a.now())
	if err := a.repo.UpdateDelivery(ctx, messageID, rec); err != nil {
		return fmt.Errorf("update delivery for message %s: %w", messageID, err)
	}

	switch o := outcome.(type) {
	case Success:
		a.log.Info().Str("message_id", messageID).Msg("message sent successfully")
	case Failure:
		a.sink.Record(ctx, audit.Record{
			Kind:      audit.KindDelivery,
			Stage:     string(stageErrors.StageDeliver),
			MessageID: messageID,
			Message:   *rec.FailReason,
		})
		if o.State != "" {
			a.log.Error().
				Str("state", o.State).
				Str("channel_id", channelID).
				Msg("provider instance not connected, the QR code may need to be rescanned")
		}
	case Ambiguous:
		a.log.Warn().Str("message_id", messageID).Str("response", o.RawDescription).Msg("unexpected response format from provider")
		a.sink.Record(ctx, audit.Record{
			Kind:      audit.KindDelivery,
			Stage:     string(stageErrors.StageDeliver),
			MessageID: messageID,
			Message:   ReasonAmbiguousResponse,
			Fields:    map[string]any{"response": o.RawDescription},
		})
	}
	return nil
}

// DeliverAndRecord sends the message and records the outcome.
func (a *Agent) DeliverAndRecord(ctx context.Context, msg *conversation.Message, agentID, channelID, address string) (Outcome, error) {
	outcome := a.Deliver(ctx, agentID, address, msg.Text)
	return outcome, a.Record(ctx, msg.ID, channelID, outcome)
}
