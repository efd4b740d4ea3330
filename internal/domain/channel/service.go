package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
)

// Service resolves provider instances to channels and tracks their connectivity.
type Service struct {
	repo Repository
	sink audit.Sink
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates a channel service.
func NewService(repo Repository, sink audit.Sink, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		sink: sink,
		log:  log.With().Str("component", "channel-resolver").Logger(),
		now:  time.Now,
	}
}

// Resolve looks up the channel by instance name, then by instance id.
// A nil channel with nil error means the instance is not configured here.
func (s *Service) Resolve(ctx context.Context, instanceName, instanceID string) (*Channel, error) {
	if instanceName != "" {
		ch, err := s.repo.FindByInstanceName(ctx, instanceName)
		if err != nil {
			return nil, fmt.Errorf("find channel by instance name: %w", err)
		}
		if ch != nil {
			return ch, nil
		}
	}

	if instanceID != "" {
		ch, err := s.repo.FindByInstanceID(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("find channel by instance id: %w", err)
		}
		if ch != nil {
			return ch, nil
		}
	}

	s.sink.Record(ctx, audit.Record{
		Kind:    audit.KindSuppressed,
		Stage:   string(stageErrors.StageResolve),
		Message: "no matching channel found for instance",
		Fields:  map[string]any{"instance": instanceName, "instance_id": instanceID},
	})
	return nil, nil
}

// ApplyConnectionUpdate stores a connection state change on the channel.
func (s *Service) ApplyConnectionUpdate(ctx context.Context, ch *Channel, update ConnectionUpdate) error {
	if ch == nil {
		return fmt.Errorf("apply connection update: nil channel")
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = s.now()
	}

	config := MergeConnection(ch.Config, update)
	if err := s.repo.UpdateConnection(ctx, ch.ID, update.Connected(), config); err != nil {
		return fmt.Errorf("update channel %s connection: %w", ch.ID, err)
	}
	ch.Config = config
	ch.Connected = update.Connected()

	s.log.Info().
		Str("channel_id", ch.ID).
		Str("state", update.State).
		Bool("connected", ch.Connected).
		Msg("channel connection status updated")
	return nil
}

// FindAgent returns the agent by id, or nil when absent.
func (s *Service) FindAgent(ctx context.Context, agentID string) (*Agent, error) {
	return s.repo.FindAgent(ctx, agentID)
}

// FindActiveByAgent returns the agent's non-retired channel, or nil when absent.
func (s *Service) FindActiveByAgent(ctx context.Context, agentID string) (*Channel, error) {
	return s.repo.FindActiveByAgentID(ctx, agentID)
}
