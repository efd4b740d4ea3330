package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

func seedChannel(s *Store, id, instance string, retired bool) {
	agentID := "agent-" + id
	s.PutAgent(&channel.Agent{ID: agentID, WorkspaceID: "ws", IsActive: true})
	ch := &channel.Channel{
		ID:      id,
		AgentID: &agentID,
		Config: map[string]any{
			channel.ConfigEvolutionAPI: map[string]any{channel.ConfigInstanceName: instance},
		},
	}
	if retired {
		now := time.Now()
		ch.RetiredAt = &now
	}
	s.PutChannel(ch)
}

func TestChannelRepository_SkipsRetiredAndLoadsAgent(t *testing.T) {
	s := NewStore()
	seedChannel(s, "a", "line-1", true)
	seedChannel(s, "b", "line-1", false)

	ch, err := s.Channels().FindByInstanceName(context.Background(), "line-1")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "b", ch.ID)
	require.NotNil(t, ch.Agent)
	assert.Equal(t, "agent-b", ch.Agent.ID)

	missing, err := s.Channels().FindByInstanceName(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChannelRepository_UpdateConnection(t *testing.T) {
	s := NewStore()
	seedChannel(s, "a", "line-1", false)

	cfg := map[string]any{"status": "open"}
	require.NoError(t, s.Channels().UpdateConnection(context.Background(), "a", true, cfg))

	ch, err := s.Channels().FindByID(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ch.Connected)
	assert.Equal(t, "open", ch.Config["status"])

	assert.Error(t, s.Channels().UpdateConnection(context.Background(), "missing", true, cfg))
}

func TestEventRepository_LifecycleAndStaleClaims(t *testing.T) {
	s := NewStore()
	repo := s.Events()
	ctx := context.Background()

	ev := &event.WebhookEvent{Event: "messages.upsert", RawData: map[string]any{"k": "v"}}
	require.NoError(t, repo.Create(ctx, ev))
	require.NotEmpty(t, ev.ID)

	cutoff := time.Now().Add(time.Minute)
	stale, err := repo.ListStale(ctx, cutoff, 2, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, 1, stale[0].Attempts)

	_, err = repo.ListStale(ctx, cutoff, 2, 10)
	require.NoError(t, err)
	exhausted, err := repo.ListStale(ctx, cutoff, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, exhausted)

	msgID := "msg-1"
	require.NoError(t, repo.MarkProcessed(ctx, ev.ID, event.ProcessingUpdate{RelatedMessageID: &msgID}))
	got, err := repo.FindByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, &msgID, got.RelatedMessageID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestEventRepository_PayloadLimitAndInjectedFailure(t *testing.T) {
	s := NewStore()
	s.MaxRawPayloadKeys = 1
	ctx := context.Background()

	err := s.Events().Create(ctx, &event.WebhookEvent{RawData: map[string]any{"a": 1, "b": 2}})
	assert.ErrorIs(t, err, event.ErrPayloadTooLarge)

	boom := errors.New("boom")
	s.Fail["event.create"] = boom
	err = s.Events().Create(ctx, &event.WebhookEvent{})
	assert.ErrorIs(t, err, boom)
}

func TestConversationRepository_ChatUniquenessAndDelivery(t *testing.T) {
	s := NewStore()
	repo := s.Conversations()
	ctx := context.Background()

	chat := &conversation.Chat{AgentID: "agent", WhatsappPhone: "5511"}
	interaction := &conversation.Interaction{AgentID: "agent"}
	require.NoError(t, repo.CreateChatWithInteraction(ctx, chat, interaction))
	assert.Equal(t, chat.ID, interaction.ChatID)

	dup := &conversation.Chat{AgentID: "agent", WhatsappPhone: "5511"}
	err := repo.CreateChatWithInteraction(ctx, dup, &conversation.Interaction{})
	assert.ErrorIs(t, err, conversation.ErrChatExists)

	found, err := repo.FindChat(ctx, "agent", "5511")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID)

	require.NoError(t, repo.IncrementUnread(ctx, chat.ID))
	assert.Equal(t, 1, s.Chats()[0].UnreadCount)

	msg := &conversation.Message{ChatID: chat.ID, Role: conversation.RoleAssistant, Text: "hi"}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	now := time.Now()
	providerID := "wamid-1"
	require.NoError(t, repo.UpdateDelivery(ctx, msg.ID, conversation.DeliveryRecord{
		Sent:              true,
		SentAt:            &now,
		ProviderMessageID: &providerID,
	}))

	stored, err := repo.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SentToEvolution)
	assert.Equal(t, "wamid-1", stored.WhatsappMessageID)

	_, err = repo.FindMessage(ctx, "missing")
	assert.ErrorIs(t, err, conversation.ErrMessageNotFound)
}

func TestConversationRepository_ConcurrentIncrementUnread(t *testing.T) {
	s := NewStore()
	repo := s.Conversations()
	ctx := context.Background()

	chat := &conversation.Chat{AgentID: "agent", WhatsappPhone: "5511"}
	require.NoError(t, repo.CreateChatWithInteraction(ctx, chat, &conversation.Interaction{AgentID: "agent"}))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementUnread(ctx, chat.ID))
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Chats()[0].UnreadCount)
	assert.False(t, s.Chats()[0].Read)
}

func TestStore_WritesRejectCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Events().Create(ctx, &event.WebhookEvent{})
	assert.ErrorIs(t, err, context.Canceled)
	err = s.Conversations().UpdateDelivery(ctx, "any", conversation.DeliveryRecord{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.AllEvents())
}
