package channel

import "time"

// Config keys inside the channel configuration blob.
const (
	ConfigEvolutionAPI      = "evolutionApi"
	ConfigInstanceName      = "instanceName"
	ConfigInstanceID        = "instanceId"
	ConfigStatus            = "status"
	ConfigConnectionStatus  = "connectionStatus"
	ConnectionStateOpen     = "open"
	ConnectionStateUnknown  = "unknown"
	connectionStatusState   = "state"
	connectionStatusReason  = "statusReason"
	connectionStatusUpdated = "updatedAt"
)

// Agent is the automated persona owning a channel. It is managed elsewhere; this service only reads it.
type Agent struct {
	ID              string `json:"id"`
	WorkspaceID     string `json:"workspace_id"`
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	OnNewMessageURL string `json:"on_new_message_url,omitempty"`
}

// Channel binds the service to one provider instance.
type Channel struct {
	ID        string         `json:"id"`
	AgentID   *string        `json:"agent_id,omitempty"`
	Agent     *Agent         `json:"agent,omitempty"`
	Name      string         `json:"name"`
	Connected bool           `json:"connected"`
	Config    map[string]any `json:"config"`
	RetiredAt *time.Time     `json:"retired_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// InstanceName returns the configured provider instance name.
func (c *Channel) InstanceName() string {
	return c.evolutionString(ConfigInstanceName)
}

// InstanceID returns the configured provider instance id.
func (c *Channel) InstanceID() string {
	return c.evolutionString(ConfigInstanceID)
}

// ConnectionState returns the last known provider connection state.
func (c *Channel) ConnectionState() string {
	if status, ok := c.Config[ConfigConnectionStatus].(map[string]any); ok {
		if state, ok := status[connectionStatusState].(string); ok && state != "" {
			return state
		}
	}
	if state := c.evolutionString(ConfigStatus); state != "" {
		return state
	}
	return ConnectionStateUnknown
}

func (c *Channel) evolutionString(key string) string {
	evo, ok := c.Config[ConfigEvolutionAPI].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := evo[key].(string)
	return v
}

// ConnectionUpdate is a provider connection state change.
type ConnectionUpdate struct {
	State        string
	StatusReason any
	UpdatedAt    time.Time
}

// Connected reports whether the state means the instance can send messages.
func (u ConnectionUpdate) Connected() bool {
	return u.State == ConnectionStateOpen
}

// MergeConnection returns a copy of config with the update merged in.
// Existing keys are preserved.
func MergeConnection(config map[string]any, update ConnectionUpdate) map[string]any {
	merged := make(map[string]any, len(config)+2)
	for k, v := range config {
		merged[k] = v
	}

	evo := map[string]any{}
	if existing, ok := config[ConfigEvolutionAPI].(map[string]any); ok {
		for k, v := range existing {
			evo[k] = v
		}
	}
	evo[ConfigStatus] = update.State
	merged[ConfigEvolutionAPI] = evo

	merged[ConfigConnectionStatus] = map[string]any{
		connectionStatusState:   update.State,
		connectionStatusReason:  update.StatusReason,
		connectionStatusUpdated: update.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	return merged
}
