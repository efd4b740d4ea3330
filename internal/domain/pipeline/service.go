// Package pipeline runs the webhook ingestion, correlation, reply and delivery stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/inbound"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/metrics"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/observability"
)

// Status describes what happened to one webhook callback.
type Status string

const (
	StatusProcessed    Status = "processed"
	StatusRecorded     Status = "recorded_error"
	StatusIgnoredGroup Status = "ignored_group"
	StatusIgnoredSelf  Status = "ignored_from_self"
	StatusUnresolved   Status = "unresolved_instance"
	StatusStored       Status = "stored"
	StatusTestMode     Status = "test_mode"
	StatusFailed       Status = "failed"
)

// Result is the acknowledgment returned to the transport layer.
// Success is false only for hard failures.
type Result struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id,omitempty"`
	Status  Status `json:"status"`
}

// Notifier tells an agent's own endpoint about a new inbound message.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, agent *channel.Agent, chat *conversation.Chat, msg *conversation.Message) error
}

// Service orchestrates the pipeline for each inbound callback.
type Service struct {
	normalizer *inbound.Normalizer
	channels   *channel.Service
	events     *event.Store
	correlator *conversation.Correlator
	dispatcher *conversation.Dispatcher
	delivery   *delivery.Agent
	notifier   Notifier
	sink       audit.Sink
	log        zerolog.Logger

	notifications sync.WaitGroup
}

// NewService creates the pipeline. notifier may be nil.
func NewService(
	normalizer *inbound.Normalizer,
	channels *channel.Service,
	events *event.Store,
	correlator *conversation.Correlator,
	dispatcher *conversation.Dispatcher,
	deliveryAgent *delivery.Agent,
	notifier Notifier,
	sink audit.Sink,
	log zerolog.Logger,
) *Service {
	return &Service{
		normalizer: normalizer,
		channels:   channels,
		events:     events,
		correlator: correlator,
		dispatcher: dispatcher,
		delivery:   deliveryAgent,
		notifier:   notifier,
		sink:       sink,
		log:        log.With().Str("component", "webhook-pipeline").Logger(),
	}
}

// HandleWebhook runs one callback through the pipeline. It never returns an error;
// internal failures are reported through Result.
func (s *Service) HandleWebhook(ctx context.Context, payload map[string]any) Result {
	n := s.normalizer.Normalize(payload)
	ctx, span := observability.StartWebhookSpan(ctx, n.Event, n.InstanceName)
	defer span.End()

	for _, d := range n.Degradations {
		metrics.RecordDegradation(d.Field)
		s.sink.Record(ctx, audit.Record{
			Kind:    audit.KindDegradation,
			Stage:   string(stageErrors.StageNormalize),
			Message: d.Reason,
			Fields:  map[string]any{"field": d.Field},
		})
	}

	result := s.handle(ctx, n, payload)
	observability.AddOutcomeEvent(span, "webhook", string(result.Status))
	metrics.RecordWebhook(n.Event, string(result.Status))
	return result
}

func (s *Service) handle(ctx context.Context, n *inbound.Normalized, payload map[string]any) Result {
	if !n.IsMessage() {
		return s.handleNonMessage(ctx, n)
	}

	if n.FromSelf {
		s.log.Debug().Str("instance", n.InstanceName).Msg("skipping message from self")
		return Result{Success: true, Status: StatusIgnoredSelf}
	}

	if signals := inbound.DetectGroup(n.RemoteAddress, payload); signals.Any() {
		s.sink.Record(ctx, audit.Record{
			Kind:    audit.KindSuppressed,
			Stage:   string(stageErrors.StageGroup),
			Message: "ignoring group message",
			Fields: map[string]any{
				"remote_jid":       n.RemoteAddress,
				"group_address":    signals.GroupAddress,
				"sender_key":       signals.SenderKeyMarker,
				"participant":      signals.ParticipantPresent,
				"provider_message": n.ProviderMessageID,
			},
		})
		return Result{Success: true, Status: StatusIgnoredGroup}
	}

	start := time.Now()
	ch, err := s.channels.Resolve(ctx, n.InstanceName, n.InstanceID)
	metrics.ObserveStage(string(stageErrors.StageResolve), time.Since(start).Seconds())
	if err != nil {
		s.hardFailure(ctx, stageErrors.StageResolve, "", err)
		return Result{Success: false, Status: StatusFailed}
	}
	if ch == nil {
		return Result{Success: true, Status: StatusUnresolved}
	}

	ev := newEvent(n, ch)
	start = time.Now()
	redacted, err := s.events.Persist(ctx, ev)
	metrics.ObserveStage(string(stageErrors.StagePersist), time.Since(start).Seconds())
	if err != nil {
		s.hardFailure(ctx, stageErrors.StagePersist, ev.ID, err)
		return Result{Success: false, Status: StatusFailed}
	}
	if redacted {
		s.log.Warn().Str("event_id", ev.ID).Msg("webhook event stored with redacted payload")
	}

	if err := s.ProcessEvent(ctx, ev.ID); err != nil {
		if se, ok := stageErrors.As(err); ok && !se.IsHard() {
			return Result{Success: true, EventID: ev.ID, Status: StatusRecorded}
		}
		s.hardFailure(ctx, stageErrors.StageCorrelate, ev.ID, err)
		return Result{Success: false, EventID: ev.ID, Status: StatusFailed}
	}
	return Result{Success: true, EventID: ev.ID, Status: StatusProcessed}
}

// handleNonMessage applies connection updates and stores the event as already processed.
func (s *Service) handleNonMessage(ctx context.Context, n *inbound.Normalized) Result {
	ch, err := s.channels.Resolve(ctx, n.InstanceName, n.InstanceID)
	if err != nil {
		s.log.Error().Err(err).Str("event", n.Event).Msg("resolve channel for non-message event")
		return Result{Success: true, Status: StatusUnresolved}
	}

	if n.Event == inbound.EventConnectionUpdate {
		if ch == nil {
			s.log.Warn().Str("instance", n.InstanceName).Msg("received connection update for unknown instance")
		} else {
			update := channel.ConnectionUpdate{State: stringValue(n.Data["state"]), StatusReason: n.Data["statusReason"]}
			if err := s.channels.ApplyConnectionUpdate(ctx, ch, update); err != nil {
				s.log.Error().Err(err).Str("channel_id", ch.ID).Msg("failed to update channel connection status")
			}
		}
	}

	if ch == nil {
		return Result{Success: true, Status: StatusUnresolved}
	}
	if n.TestMode {
		s.log.Debug().Str("event", n.Event).Msg("test mode enabled, skipping event storage")
		return Result{Success: true, Status: StatusTestMode}
	}

	ev := newEvent(n, ch)
	now := time.Now()
	ev.Processed = true
	ev.ProcessedAt = &now
	if _, err := s.events.Persist(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", n.Event).Msg("could not store event")
		return Result{Success: true, Status: StatusStored}
	}
	return Result{Success: true, EventID: ev.ID, Status: StatusStored}
}

// ProcessEvent runs correlation, dispatch, reply and delivery for a stored event.
// Reprocessing an already processed event is a no-op. Outcome writes on the event use a
// context detached from ctx cancellation.
func (s *Service) ProcessEvent(ctx context.Context, eventID string) error {
	writeCtx := context.WithoutCancel(ctx)
	ev, err := s.events.Find(ctx, eventID)
	if err != nil {
		return stageErrors.Hard(stageErrors.StageCorrelate, stageErrors.CodeStorage, "load webhook event", err)
	}

	chat, se := s.correlate(ctx, ev)
	if se != nil {
		metrics.RecordStageOutcome(string(se.Stage), string(se.Category), se.Code)
		if se.Code == stageErrors.CodeAlreadyProcessed {
			s.log.Debug().Str("event_id", ev.ID).Msg("webhook event already processed, skipping")
			return nil
		}
		if err := s.terminate(writeCtx, ev.ID, se); err != nil {
			return err
		}
		if se.Code == stageErrors.CodeChatCreation {
			return se
		}
		return nil
	}

	inboundMsg, se := s.recordInbound(ctx, ev, chat)
	if se != nil {
		metrics.RecordStageOutcome(string(se.Stage), string(se.Category), se.Code)
		if err := s.terminate(writeCtx, ev.ID, se); err != nil {
			return err
		}
		return se
	}

	relatedID := inboundMsg.ID
	if err := s.events.Complete(writeCtx, ev.ID, event.ProcessingUpdate{RelatedMessageID: &relatedID, ProcessedAt: time.Now()}); err != nil {
		return stageErrors.Hard(stageErrors.StageDispatch, stageErrors.CodeStorage, "link message to webhook event", err)
	}

	s.notify(ctx, ev.Agent(), chat, inboundMsg)

	reply, se := s.reply(ctx, ev, chat)
	if se != nil {
		metrics.RecordReply("failed")
		metrics.RecordStageOutcome(string(se.Stage), string(se.Category), se.Code)
		s.log.Error().Err(se).Str("event_id", ev.ID).Str("chat_id", chat.ID).Msg("error getting agent response")
		s.record(ctx, ev.ID, chat.ID, se)
		if err := s.events.RecordError(writeCtx, ev.ID, se.Message); err != nil {
			s.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to record reply error on event")
		}
		return nil
	}
	if reply == nil {
		return nil
	}
	metrics.RecordReply("generated")

	s.deliver(ctx, ev, chat, reply)
	return nil
}

func (s *Service) correlate(ctx context.Context, ev *event.WebhookEvent) (*conversation.Chat, *stageErrors.StageError) {
	ctx, span := observability.StartStageSpan(ctx, string(stageErrors.StageCorrelate), ev.ID)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage(string(stageErrors.StageCorrelate), time.Since(start).Seconds()) }()

	chat, se := s.correlator.Correlate(ctx, ev)
	if se != nil {
		observability.RecordError(span, se, string(se.Category))
	}
	return chat, se
}

func (s *Service) recordInbound(ctx context.Context, ev *event.WebhookEvent, chat *conversation.Chat) (*conversation.Message, *stageErrors.StageError) {
	ctx, span := observability.StartStageSpan(ctx, string(stageErrors.StageDispatch), ev.ID)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage(string(stageErrors.StageDispatch), time.Since(start).Seconds()) }()

	msg, se := s.dispatcher.RecordInbound(ctx, ev, chat)
	if se != nil {
		observability.RecordError(span, se, string(se.Category))
	}
	return msg, se
}

func (s *Service) reply(ctx context.Context, ev *event.WebhookEvent, chat *conversation.Chat) (*conversation.Message, *stageErrors.StageError) {
	ctx, span := observability.StartStageSpan(ctx, string(stageErrors.StageReply), ev.ID)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage(string(stageErrors.StageReply), time.Since(start).Seconds()) }()

	msg, se := s.dispatcher.Reply(ctx, ev, chat)
	if se != nil {
		observability.RecordError(span, se, string(se.Category))
	}
	return msg, se
}

func (s *Service) deliver(ctx context.Context, ev *event.WebhookEvent, chat *conversation.Chat, reply *conversation.Message) {
	ctx, span := observability.StartStageSpan(ctx, string(stageErrors.StageDeliver), ev.ID)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage(string(stageErrors.StageDeliver), time.Since(start).Seconds()) }()

	agentID := chat.AgentID
	if agent := ev.Agent(); agent != nil {
		agentID = agent.ID
	}
	channelID := ""
	if ev.Channel != nil {
		channelID = ev.Channel.ID
	}

	outcome, err := s.delivery.DeliverAndRecord(ctx, reply, agentID, channelID, chat.WhatsappPhone)
	metrics.RecordDelivery(outcome.Label())
	observability.AddOutcomeEvent(span, string(stageErrors.StageDeliver), outcome.Label())
	if err != nil {
		observability.RecordError(span, err, string(stageErrors.CategoryDelivery))
		s.log.Error().Err(err).Str("message_id", reply.ID).Msg("failed to record delivery outcome")
		if recErr := s.events.RecordError(context.WithoutCancel(ctx), ev.ID, fmt.Sprintf("Delivery tracking failed: %s", err.Error())); recErr != nil {
			s.log.Error().Err(recErr).Str("event_id", ev.ID).Msg("failed to record delivery error on event")
		}
	}
}

// terminate marks the event processed with the stage error's audit text.
func (s *Service) terminate(ctx context.Context, eventID string, se *stageErrors.StageError) error {
	s.record(ctx, eventID, "", se)

	update := event.ProcessingUpdate{ProcessedAt: time.Now()}
	if se.ShouldRecord() {
		msg := se.Message
		update.Error = &msg
	}
	if err := s.events.Complete(ctx, eventID, update); err != nil {
		return stageErrors.Hard(se.Stage, stageErrors.CodeStorage, "record stage outcome on event", errors.Join(err, se))
	}
	return nil
}

func (s *Service) record(ctx context.Context, eventID, chatID string, se *stageErrors.StageError) {
	kind := audit.KindRecorded
	if se.Category == stageErrors.CategorySuppressed {
		kind = audit.KindSuppressed
	}
	s.sink.Record(ctx, audit.Record{
		Kind:    kind,
		Stage:   string(se.Stage),
		EventID: eventID,
		ChatID:  chatID,
		Message: se.Message,
		Fields:  map[string]any{"code": se.Code},
	})
}

func (s *Service) hardFailure(ctx context.Context, stage stageErrors.Stage, eventID string, err error) {
	metrics.RecordStageOutcome(string(stage), string(stageErrors.CategoryHard), stageErrors.CodeStorage)
	s.sink.Record(ctx, audit.Record{
		Kind:    audit.KindHardFailure,
		Stage:   string(stage),
		EventID: eventID,
		Message: err.Error(),
	})
}

func (s *Service) notify(ctx context.Context, agent *channel.Agent, chat *conversation.Chat, msg *conversation.Message) {
	if s.notifier == nil || agent == nil || agent.OnNewMessageURL == "" {
		return
	}
	notifyCtx := context.WithoutCancel(ctx)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		if err := s.notifier.NotifyNewMessage(notifyCtx, agent, chat, msg); err != nil {
			s.log.Warn().Err(err).Str("agent_id", agent.ID).Str("chat_id", chat.ID).Msg("agent notification failed")
		}
	}()
}

// Drain waits for in-flight agent notifications until ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newEvent(n *inbound.Normalized, ch *channel.Channel) *event.WebhookEvent {
	channelID := ch.ID
	return &event.WebhookEvent{
		Event:            n.Event,
		Instance:         n.InstanceName,
		InstanceID:       n.InstanceID,
		RawData:          n.Data,
		RemoteJID:        n.RemoteAddress,
		FromMe:           n.FromSelf,
		MessageID:        n.ProviderMessageID,
		PushName:         n.SenderDisplayName,
		MessageType:      n.MessageType,
		MessageContent:   n.Text,
		MessageTimestamp: n.ProviderTimestamp,
		DateTime:         n.DateTime,
		Destination:      n.Destination,
		Sender:           n.Sender,
		ServerURL:        n.ServerURL,
		APIKey:           n.APIKey,
		ChannelID:        &channelID,
		Channel:          ch,
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
