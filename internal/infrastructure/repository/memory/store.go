// Package memory implements the repositories in process for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

// Store holds channels, agents, events, chats and messages.
// Writes reject a cancelled context the way the gorm repositories do.
type Store struct {
	mu           sync.Mutex
	agents       map[string]*channel.Agent
	channels     map[string]*channel.Channel
	events       map[string]*event.WebhookEvent
	chats        map[string]*conversation.Chat
	interactions map[string]*conversation.Interaction
	messages     map[string]*conversation.Message
	order        []string

	// MaxRawPayloadKeys rejects event payloads with more top level keys, simulating a size limit.
	MaxRawPayloadKeys int
	// Fail injects errors by operation name.
	Fail map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		agents:       map[string]*channel.Agent{},
		channels:     map[string]*channel.Channel{},
		events:       map[string]*event.WebhookEvent{},
		chats:        map[string]*conversation.Chat{},
		interactions: map[string]*conversation.Interaction{},
		messages:     map[string]*conversation.Message{},
		Fail:         map[string]error{},
	}
}

func (s *Store) failure(op string) error {
	if err, ok := s.Fail[op]; ok {
		return err
	}
	return nil
}

// PutAgent stores an agent.
func (s *Store) PutAgent(agent *channel.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *agent
	s.agents[agent.ID] = &cp
}

// PutChannel stores a channel.
func (s *Store) PutChannel(ch *channel.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	cp.Agent = nil
	s.channels[ch.ID] = &cp
}

// PutChat stores a chat.
func (s *Store) PutChat(chat *conversation.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *chat
	s.chats[chat.ID] = &cp
}

// Channels returns the channel repository view.
func (s *Store) Channels() *ChannelRepository { return &ChannelRepository{s: s} }

// Events returns the event repository view.
func (s *Store) Events() *EventRepository { return &EventRepository{s: s} }

// Conversations returns the conversation repository view.
func (s *Store) Conversations() *ConversationRepository { return &ConversationRepository{s: s} }

// Chats returns a snapshot of all chats.
func (s *Store) Chats() []conversation.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	return out
}

// Interactions returns a snapshot of all interactions.
func (s *Store) Interactions() []conversation.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Interaction, 0, len(s.interactions))
	for _, i := range s.interactions {
		out = append(out, *i)
	}
	return out
}

// Messages returns a snapshot of messages in creation order.
func (s *Store) Messages() []conversation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Message, 0, len(s.messages))
	for _, id := range s.order {
		if m, ok := s.messages[id]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// AllEvents returns a snapshot of stored events ordered by creation time.
func (s *Store) AllEvents() []event.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.WebhookEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) loadChannel(id string) *channel.Channel {
	ch, ok := s.channels[id]
	if !ok {
		return nil
	}
	cp := *ch
	if ch.AgentID != nil {
		if agent, ok := s.agents[*ch.AgentID]; ok {
			a := *agent
			cp.Agent = &a
		}
	}
	return &cp
}

// ChannelRepository implements channel.Repository.
type ChannelRepository struct{ s *Store }

func (r *ChannelRepository) find(match func(*channel.Channel) bool) (*channel.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("channel.find"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(r.s.channels))
	for id := range r.s.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ch := r.s.channels[id]
		if ch.RetiredAt == nil && match(ch) {
			return r.s.loadChannel(id), nil
		}
	}
	return nil, nil
}

func (r *ChannelRepository) FindByInstanceName(_ context.Context, name string) (*channel.Channel, error) {
	return r.find(func(c *channel.Channel) bool { return c.InstanceName() == name })
}

func (r *ChannelRepository) FindByInstanceID(_ context.Context, id string) (*channel.Channel, error) {
	return r.find(func(c *channel.Channel) bool { return c.InstanceID() == id })
}

func (r *ChannelRepository) FindByID(_ context.Context, id string) (*channel.Channel, error) {
	return r.find(func(c *channel.Channel) bool { return c.ID == id })
}

func (r *ChannelRepository) FindActiveByAgentID(_ context.Context, agentID string) (*channel.Channel, error) {
	return r.find(func(c *channel.Channel) bool { return c.AgentID != nil && *c.AgentID == agentID })
}

func (r *ChannelRepository) FindAgent(_ context.Context, agentID string) (*channel.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("agent.find"); err != nil {
		return nil, err
	}
	agent, ok := r.s.agents[agentID]
	if !ok {
		return nil, nil
	}
	cp := *agent
	return &cp, nil
}

func (r *ChannelRepository) UpdateConnection(ctx context.Context, id string, connected bool, config map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("channel.update"); err != nil {
		return err
	}
	ch, ok := r.s.channels[id]
	if !ok {
		return fmt.Errorf("channel %s not found", id)
	}
	ch.Connected = connected
	ch.Config = config
	ch.UpdatedAt = time.Now()
	return nil
}

// EventRepository implements event.Repository.
type EventRepository struct{ s *Store }

func (r *EventRepository) Create(ctx context.Context, ev *event.WebhookEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("event.create"); err != nil {
		return err
	}
	if r.s.MaxRawPayloadKeys > 0 && len(ev.RawData) > r.s.MaxRawPayloadKeys {
		return fmt.Errorf("create webhook event: %w", event.ErrPayloadTooLarge)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	cp := *ev
	cp.Channel = nil
	r.s.events[ev.ID] = &cp
	return nil
}

func (r *EventRepository) FindByID(_ context.Context, id string) (*event.WebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	cp := *ev
	if ev.ChannelID != nil {
		cp.Channel = r.s.loadChannel(*ev.ChannelID)
	}
	return &cp, nil
}

func (r *EventRepository) MarkProcessed(ctx context.Context, id string, update event.ProcessingUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("event.mark"); err != nil {
		return err
	}
	ev, ok := r.s.events[id]
	if !ok {
		return event.ErrNotFound
	}
	at := update.ProcessedAt
	if at.IsZero() {
		at = time.Now()
	}
	ev.Processed = true
	ev.ProcessedAt = &at
	if update.Error != nil {
		ev.Error = update.Error
	}
	if update.RelatedMessageID != nil {
		ev.RelatedMessageID = update.RelatedMessageID
	}
	return nil
}

func (r *EventRepository) RecordError(ctx context.Context, id, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[id]
	if !ok {
		return event.ErrNotFound
	}
	msg := message
	ev.Error = &msg
	return nil
}

func (r *EventRepository) ListStale(_ context.Context, olderThan time.Time, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.WebhookEvent
	for _, ev := range r.s.events {
		if ev.Processed || ev.Event != "messages.upsert" || ev.Attempts >= maxAttempts || !ev.CreatedAt.Before(olderThan) {
			continue
		}
		ev.Attempts++
		cp := *ev
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *EventRepository) CountStale(_ context.Context, olderThan time.Time, maxAttempts int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, ev := range r.s.events {
		if !ev.Processed && ev.Event == "messages.upsert" && ev.Attempts < maxAttempts && ev.CreatedAt.Before(olderThan) {
			n++
		}
	}
	return n, nil
}

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct{ s *Store }

func (r *ConversationRepository) FindChat(_ context.Context, agentID, phone string) (*conversation.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("chat.find"); err != nil {
		return nil, err
	}
	for _, c := range r.s.chats {
		if c.AgentID == agentID && c.WhatsappPhone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ConversationRepository) CreateChatWithInteraction(ctx context.Context, chat *conversation.Chat, interaction *conversation.Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("chat.create"); err != nil {
		return err
	}
	for _, c := range r.s.chats {
		if c.AgentID == chat.AgentID && c.WhatsappPhone == chat.WhatsappPhone {
			return conversation.ErrChatExists
		}
	}
	chat.ID = uuid.NewString()
	interaction.ID = uuid.NewString()
	interaction.ChatID = chat.ID
	cc := *chat
	ic := *interaction
	r.s.chats[chat.ID] = &cc
	r.s.interactions[interaction.ID] = &ic
	return nil
}

func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *conversation.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("message.create." + string(msg.Role)); err != nil {
		return err
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	cp := *msg
	r.s.messages[msg.ID] = &cp
	r.s.order = append(r.s.order, msg.ID)
	return nil
}

func (r *ConversationRepository) FindMessage(_ context.Context, id string) (*conversation.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, conversation.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *ConversationRepository) IncrementUnread(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %s not found", chatID)
	}
	c.UnreadCount++
	c.Read = false
	return nil
}

func (r *ConversationRepository) UpdateDelivery(ctx context.Context, messageID string, record conversation.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[messageID]
	if !ok {
		return conversation.ErrMessageNotFound
	}
	m.SentToEvolution = record.Sent
	m.SentAt = record.SentAt
	m.FailedAt = record.FailedAt
	m.FailReason = record.FailReason
	if record.ProviderMessageID != nil {
		m.WhatsappMessageID = *record.ProviderMessageID
	}
	return nil
}
