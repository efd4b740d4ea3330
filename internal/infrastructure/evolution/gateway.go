package evolution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/domain/inbound"
)

// configAPIKey is the per-instance key inside the channel's evolutionApi config.
const configAPIKey = "apiKey"

const errInstanceNotConnected = "instance not connected"

// ChannelFinder resolves the channel an agent sends through.
type ChannelFinder interface {
	FindActiveByAgent(ctx context.Context, agentID string) (*channel.Channel, error)
}

// Gateway implements delivery.Sender on top of Client.
type Gateway struct {
	client   *Client
	channels ChannelFinder
	log      zerolog.Logger
}

var _ delivery.Sender = (*Gateway)(nil)

// NewGateway creates the sender used by the delivery agent.
func NewGateway(client *Client, channels ChannelFinder, log zerolog.Logger) *Gateway {
	return &Gateway{
		client:   client,
		channels: channels,
		log:      log.With().Str("component", "evolution-gateway").Logger(),
	}
}

// SendMessage sends text to address through the agent's active channel.
func (g *Gateway) SendMessage(ctx context.Context, agentID, address, text string) (map[string]any, error) {
	ch, err := g.channels.FindActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("find channel for agent %s: %w", agentID, err)
	}
	if ch == nil {
		return nil, fmt.Errorf("no active channel for agent %s", agentID)
	}

	if state := ch.ConnectionState(); !ch.Connected && state != channel.ConnectionStateOpen && state != channel.ConnectionStateUnknown {
		g.log.Warn().
			Str("agent_id", agentID).
			Str("channel_id", ch.ID).
			Str("state", state).
			Msg("channel is not connected, skipping send")
		return map[string]any{
			"success": false,
			"error":   errInstanceNotConnected,
			"state":   state,
		}, nil
	}

	instance := ch.InstanceName()
	number := inbound.PhoneFromAddress(address)
	g.log.Debug().
		Str("agent_id", agentID).
		Str("channel_id", ch.ID).
		Str("instance", instance).
		Msg("sending message through gateway")

	return g.client.SendText(ctx, instance, instanceAPIKey(ch), SendTextRequest{Number: number, Text: text})
}

func instanceAPIKey(ch *channel.Channel) string {
	evo, ok := ch.Config[channel.ConfigEvolutionAPI].(map[string]any)
	if !ok {
		return ""
	}
	key, _ := evo[configAPIKey].(string)
	return key
}
