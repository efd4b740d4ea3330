package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
)

// Agent is the read model of an agent managed by the agent service.
type Agent struct {
	ID              string  `gorm:"type:uuid;primaryKey"`
	WorkspaceID     *string `gorm:"type:uuid"`
	Name            string  `gorm:"size:255"`
	IsActive        bool
	OnNewMessageURL *string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for Agent.
func (Agent) TableName() string {
	return "agents"
}

// EtoD converts the entity to the domain agent.
func (a *Agent) EtoD() *channel.Agent {
	out := &channel.Agent{
		ID:       a.ID,
		Name:     a.Name,
		IsActive: a.IsActive,
	}
	if a.WorkspaceID != nil {
		out.WorkspaceID = *a.WorkspaceID
	}
	if a.OnNewMessageURL != nil {
		out.OnNewMessageURL = *a.OnNewMessageURL
	}
	return out
}

// Channel binds a provider instance to an agent.
type Channel struct {
	ID        string            `gorm:"type:uuid;primaryKey"`
	AgentID   *string           `gorm:"type:uuid;index"`
	Agent     *Agent            `gorm:"foreignKey:AgentID"`
	Name      string            `gorm:"size:255"`
	Connected bool              `gorm:"not null;default:false"`
	Config    datatypes.JSONMap `gorm:"type:jsonb"`
	RetiredAt *time.Time        `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// BeforeCreate assigns a primary key when missing.
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// EtoD converts the entity to the domain channel, including the agent when preloaded.
func (c *Channel) EtoD() *channel.Channel {
	out := &channel.Channel{
		ID:        c.ID,
		AgentID:   c.AgentID,
		Name:      c.Name,
		Connected: c.Connected,
		Config:    map[string]any(c.Config),
		RetiredAt: c.RetiredAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if out.Config == nil {
		out.Config = map[string]any{}
	}
	if c.Agent != nil {
		out.Agent = c.Agent.EtoD()
	}
	return out
}

// NewChannel converts a domain channel to its entity.
func NewChannel(ch *channel.Channel) *Channel {
	return &Channel{
		ID:        ch.ID,
		AgentID:   ch.AgentID,
		Name:      ch.Name,
		Connected: ch.Connected,
		Config:    datatypes.JSONMap(ch.Config),
		RetiredAt: ch.RetiredAt,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}
