package channel

import "context"

// Repository reads channels and agents and records connection state.
// Finders return nil, nil when nothing matches.
type Repository interface {
	FindByInstanceName(ctx context.Context, instanceName string) (*Channel, error)
	FindByInstanceID(ctx context.Context, instanceID string) (*Channel, error)
	FindByID(ctx context.Context, id string) (*Channel, error)
	FindActiveByAgentID(ctx context.Context, agentID string) (*Channel, error)
	FindAgent(ctx context.Context, agentID string) (*Agent, error)
	UpdateConnection(ctx context.Context, id string, connected bool, config map[string]any) error
}
