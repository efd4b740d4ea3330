package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/inbound"
)

// ErrEmptyReply is returned when the reply generator yields no text.
var ErrEmptyReply = errors.New("empty or invalid response from agent")

// ReplyGenerator produces the automated answer for an inbound message.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, contextKey, text, counterpartyName string) (string, error)
}

// Dispatcher records inbound messages and produces outbound replies.
type Dispatcher struct {
	repo      Repository
	generator ReplyGenerator
	sink      audit.Sink
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(repo Repository, generator ReplyGenerator, sink audit.Sink, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		generator: generator,
		sink:      sink,
		log:       log.With().Str("component", "reply-dispatcher").Logger(),
	}
}

// InboundText returns the stored text for an event.
func InboundText(ev *event.WebhookEvent) string {
	if ev.MessageContent == "" {
		return inbound.TextEmpty
	}
	return ev.MessageContent
}

// CounterpartyName returns the sender name, falling back to the phone.
func CounterpartyName(ev *event.WebhookEvent) string {
	if ev.PushName != "" {
		return ev.PushName
	}
	return inbound.PhoneFromAddress(ev.RemoteJID)
}

// RecordInbound stores the user message and bumps the chat's unread counter.
func (d *Dispatcher) RecordInbound(ctx context.Context, ev *event.WebhookEvent, chat *Chat) (*Message, *stageErrors.StageError) {
	if ev.MessageContent == "" {
		d.log.Warn().Str("event_id", ev.ID).Msg("empty message content, using fallback text")
	}

	ts := ev.MessageTimestamp
	msg := &Message{
		ChatID:            chat.ID,
		Text:              InboundText(ev),
		Role:              RoleUser,
		Type:              ev.MessageType,
		UserName:          ev.PushName,
		WhatsappMessageID: ev.MessageID,
		WhatsappTimestamp: &ts,
	}
	if err := d.repo.CreateMessage(ctx, msg); err != nil {
		return nil, messageCreationFailed(err)
	}
	if err := d.repo.IncrementUnread(ctx, chat.ID); err != nil {
		return msg, messageCreationFailed(err)
	}
	chat.UnreadCount++
	chat.Read = false

	return msg, nil
}

// Reply generates the assistant answer and stores it with delivery fields unset.
// It returns nil, nil when the chat is in human handoff mode.
func (d *Dispatcher) Reply(ctx context.Context, ev *event.WebhookEvent, chat *Chat) (*Message, *stageErrors.StageError) {
	if chat.HumanTalk {
		d.sink.Record(ctx, audit.Record{
			Kind:    audit.KindSuppressed,
			Stage:   string(stageErrors.StageReply),
			EventID: ev.ID,
			ChatID:  chat.ID,
			Message: "chat in human handoff mode, no reply generated",
		})
		return nil, nil
	}

	text, err := d.generator.GenerateReply(ctx, chat.ContextID, InboundText(ev), CounterpartyName(ev))
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		return nil, replyFailed(err)
	}

	msg := &Message{
		ChatID: chat.ID,
		Text:   text,
		Role:   RoleAssistant,
		Type:   MessageTypeConversation,
	}
	if err := d.repo.CreateMessage(ctx, msg); err != nil {
		return nil, replyFailed(fmt.Errorf("store reply: %w", err))
	}

	d.log.Debug().Str("chat_id", chat.ID).Str("message_id", msg.ID).Msg("reply message created")
	return msg, nil
}

func messageCreationFailed(err error) *stageErrors.StageError {
	return stageErrors.Recorded(stageErrors.StageDispatch, stageErrors.CodeMessageCreation,
		fmt.Sprintf("Message creation failed: %s", err.Error())).WithCause(err)
}

func replyFailed(err error) *stageErrors.StageError {
	return stageErrors.Recorded(stageErrors.StageReply, stageErrors.CodeReplyFailed,
		fmt.Sprintf("Reply generation failed: %s", err.Error())).WithCause(err)
}
