package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/inbound"
)

// Audit texts written on the event when correlation stops.
const (
	ErrTextNoChannel        = "No channel associated with this webhook event"
	ErrTextNoAgent          = "No agent associated with the channel"
	ErrTextAgentInactive    = "Skipped processing because agent is inactive"
	ErrTextMissingRemote    = "Missing remoteJid, cannot identify message source"
	ErrTextMissingWorkspace = "Unable to create chat: Missing workspaceId from agent data"
)

// Correlator finds or creates the chat for an event's (agent, counterparty) pair.
type Correlator struct {
	repo Repository
	sink audit.Sink
	log  zerolog.Logger
}

// NewCorrelator creates a correlator.
func NewCorrelator(repo Repository, sink audit.Sink, log zerolog.Logger) *Correlator {
	return &Correlator{
		repo: repo,
		sink: sink,
		log:  log.With().Str("component", "conversation-correlator").Logger(),
	}
}

// CheckPreconditions validates that ev can be correlated.
// Already processed events return a silent suppressed outcome.
func (c *Correlator) CheckPreconditions(ev *event.WebhookEvent) *stageErrors.StageError {
	switch {
	case ev.Processed:
		return stageErrors.Suppressed(stageErrors.StageCorrelate, stageErrors.CodeAlreadyProcessed, "")
	case ev.Channel == nil:
		return stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeNoChannel, ErrTextNoChannel)
	case ev.Channel.Agent == nil:
		return stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeNoAgent, ErrTextNoAgent)
	case !ev.Channel.Agent.IsActive:
		return stageErrors.Suppressed(stageErrors.StageCorrelate, stageErrors.CodeAgentInactive, ErrTextAgentInactive)
	case ev.RemoteJID == "":
		return stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeMissingRemote, ErrTextMissingRemote)
	}
	return nil
}

// Correlate returns the chat for ev, creating it with a RUNNING interaction when absent.
func (c *Correlator) Correlate(ctx context.Context, ev *event.WebhookEvent) (*Chat, *stageErrors.StageError) {
	if se := c.CheckPreconditions(ev); se != nil {
		return nil, se
	}

	agent := ev.Channel.Agent
	phone := inbound.PhoneFromAddress(ev.RemoteJID)

	chat, err := c.repo.FindChat(ctx, agent.ID, phone)
	if err != nil {
		return nil, chatCreationFailed(fmt.Errorf("find chat: %w", err))
	}
	if chat != nil {
		c.log.Debug().Str("chat_id", chat.ID).Str("event_id", ev.ID).Msg("found existing chat")
		return chat, nil
	}

	if agent.WorkspaceID == "" {
		return nil, chatCreationFailed(errors.New(ErrTextMissingWorkspace))
	}

	chat = NewChat(agent, phone, ev.PushName)
	interaction := NewInteraction(chat)
	err = c.repo.CreateChatWithInteraction(ctx, chat, interaction)
	if errors.Is(err, ErrChatExists) {
		existing, findErr := c.repo.FindChat(ctx, agent.ID, phone)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		if findErr != nil {
			err = fmt.Errorf("%w: %v", err, findErr)
		}
	}
	if err != nil {
		return nil, chatCreationFailed(err)
	}

	c.sink.Record(ctx, audit.Record{
		Kind:    audit.KindInfo,
		Stage:   string(stageErrors.StageCorrelate),
		EventID: ev.ID,
		ChatID:  chat.ID,
		Message: "chat created",
		Fields:  map[string]any{"interaction_id": interaction.ID, "phone": phone},
	})
	return chat, nil
}

func chatCreationFailed(err error) *stageErrors.StageError {
	return stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeChatCreation,
		fmt.Sprintf("Chat creation failed: %s", err.Error())).WithCause(err)
}
