package channel

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/database/entities"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

// PostgresRepository provides channel and agent lookups.
type PostgresRepository struct {
	db *gorm.DB
}

var _ domain.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByInstanceName returns the non-retired channel configured for the instance name.
func (r *PostgresRepository) FindByInstanceName(ctx context.Context, name string) (*domain.Channel, error) {
	return r.findOne(ctx, r.active(ctx).Where(
		datatypes.JSONQuery("config").Equals(name, domain.ConfigEvolutionAPI, domain.ConfigInstanceName),
	), "failed to find channel by instance name", "3f0c6a1e-8d2b-4c57-9e41-7a6b2d9c0f13")
}

// FindByInstanceID returns the non-retired channel configured for the instance id.
func (r *PostgresRepository) FindByInstanceID(ctx context.Context, id string) (*domain.Channel, error) {
	return r.findOne(ctx, r.active(ctx).Where(
		datatypes.JSONQuery("config").Equals(id, domain.ConfigEvolutionAPI, domain.ConfigInstanceID),
	), "failed to find channel by instance id", "8b14e2d7-5f3a-4a09-b6c8-1d7e9f2a4c65")
}

// FindByID returns the non-retired channel with the given id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Channel, error) {
	return r.findOne(ctx, r.active(ctx).Where("channels.id = ?", id),
		"failed to find channel by id", "c2a9d4f6-1e7b-4d38-8f05-6b3e9a7c1d24")
}

// FindActiveByAgentID returns the agent's non-retired channel.
func (r *PostgresRepository) FindActiveByAgentID(ctx context.Context, agentID string) (*domain.Channel, error) {
	return r.findOne(ctx, r.active(ctx).Where("channels.agent_id = ?", agentID).Order("channels.created_at DESC"),
		"failed to find channel by agent", "5d7f1b3a-9c2e-4e86-a4d1-0f8b6c2e7a39")
}

// FindAgent returns the agent, or nil when absent.
func (r *PostgresRepository) FindAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	var entity entities.Agent
	err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find agent",
			err,
			"e6b0c8a2-4d1f-4b7e-9a35-2c8d0f6e1b47",
		)
	}
	return entity.EtoD(), nil
}

// UpdateConnection stores the connection flag and merged configuration.
func (r *PostgresRepository) UpdateConnection(ctx context.Context, id string, connected bool, config map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Channel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"connected":  connected,
			"config":     datatypes.JSONMap(config),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update channel connection",
			result.Error,
			"1a4e7c9b-2f6d-4085-b3e2-9d5a8c1f0e63",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"channel not found",
			nil,
			"7f2b5d8e-0c3a-4e91-8d64-3b1f9a6c2e05",
		)
	}
	return nil
}

func (r *PostgresRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Agent").Where("channels.retired_at IS NULL")
}

func (r *PostgresRepository) findOne(ctx context.Context, query *gorm.DB, message, uuid string) (*domain.Channel, error) {
	var entity entities.Channel
	err := query.First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, uuid)
	}
	return entity.EtoD(), nil
}
