package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/metrics"
)

// TextAgentInactive is returned to operators who try to send through an inactive agent.
const TextAgentInactive = "Agent is inactive and cannot send messages"

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentInactive = errors.New("agent is inactive")
)

// SendTestMessage sends text to phone through the agent's channel without touching any chat.
func (s *Service) SendTestMessage(ctx context.Context, agentID, phone, text string) (delivery.Outcome, error) {
	agent, err := s.channels.FindAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("find agent %s: %w", agentID, err)
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	if !agent.IsActive {
		return nil, ErrAgentInactive
	}

	outcome := s.delivery.Deliver(ctx, agent.ID, phone, text)
	metrics.RecordDelivery(outcome.Label())
	s.log.Info().
		Str("agent_id", agent.ID).
		Str("outcome", outcome.Label()).
		Msg("test message sent")
	return outcome, nil
}
