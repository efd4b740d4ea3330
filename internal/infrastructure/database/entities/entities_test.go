package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
)

func TestChannelEtoD_IncludesAgentAndEmptyConfig(t *testing.T) {
	ws := "ws-1"
	hook := "https://agent.example.com/new"
	agentID := "agent-1"
	entity := &Channel{
		ID:      "ch-1",
		AgentID: &agentID,
		Agent:   &Agent{ID: agentID, WorkspaceID: &ws, IsActive: true, OnNewMessageURL: &hook},
	}

	ch := entity.EtoD()
	require.NotNil(t, ch.Agent)
	assert.Equal(t, "ws-1", ch.Agent.WorkspaceID)
	assert.Equal(t, hook, ch.Agent.OnNewMessageURL)
	assert.NotNil(t, ch.Config)
	assert.Equal(t, channel.ConnectionStateUnknown, ch.ConnectionState())
}

func TestMessageRoundTripKeepsDeliveryFields(t *testing.T) {
	now := time.Now()
	reason := "API error: timeout"
	ts := int64(1714471200)
	msg := &conversation.Message{
		ID:                "m-1",
		ChatID:            "c-1",
		Text:              "hello",
		Role:              conversation.RoleAssistant,
		WhatsappTimestamp: &ts,
		FailedAt:          &now,
		FailReason:        &reason,
	}

	back := NewMessage(msg).EtoD()
	assert.Equal(t, conversation.RoleAssistant, back.Role)
	assert.Equal(t, &reason, back.FailReason)
	assert.Equal(t, &ts, back.WhatsappTimestamp)
	assert.False(t, back.SentToEvolution)
}

func TestBeforeCreateAssignsIDs(t *testing.T) {
	chat := &Chat{}
	require.NoError(t, chat.BeforeCreate(nil))
	assert.Len(t, chat.ID, 36)

	kept := &Message{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed", kept.ID)
}
