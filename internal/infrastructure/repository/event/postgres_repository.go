package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/database/entities"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

const messagesUpsert = "messages.upsert"

// PostgresRepository persists webhook events.
type PostgresRepository struct {
	db              *gorm.DB
	maxPayloadBytes int
}

var _ domain.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs the repository. maxPayloadBytes <= 0 disables the size check.
func NewPostgresRepository(db *gorm.DB, maxPayloadBytes int) *PostgresRepository {
	return &PostgresRepository{db: db, maxPayloadBytes: maxPayloadBytes}
}

// Create inserts the event. Payloads above the configured size fail with ErrPayloadTooLarge.
func (r *PostgresRepository) Create(ctx context.Context, ev *domain.WebhookEvent) error {
	if r.maxPayloadBytes > 0 {
		raw, err := json.Marshal(ev.RawData)
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
				"failed to encode raw payload", err, "4b8e2a6d-1c9f-4f3e-a7d0-5e2b8c6f9a14")
		}
		if len(raw) > r.maxPayloadBytes {
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeTooLarge,
				"raw payload exceeds storage limit", domain.ErrPayloadTooLarge, "9d3a7f1c-6e2b-4a85-b0c4-2f7e1d9a3b68",
				map[string]any{"size": len(raw), "limit": r.maxPayloadBytes})
		}
	}

	entity := entities.NewWebhookEvent(ev)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create webhook event", err, "2e6c9b4f-8a1d-4d73-95e0-7c3f1a8b2d56")
	}

	ev.ID = entity.ID
	ev.CreatedAt = entity.CreatedAt
	ev.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByID loads the event with its channel and agent.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	var entity entities.WebhookEvent
	err := r.db.WithContext(ctx).
		Preload("Channel").
		Preload("Channel.Agent").
		Where("id = ?", id).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"webhook event not found", domain.ErrNotFound, "6a1f8d3c-0b7e-4c29-8e54-1d9b3f7a2c80")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find webhook event", err, "b7d2e9a4-3f1c-4b60-a8e5-9c0d4f2b6e17")
	}
	return entity.EtoD(), nil
}

// MarkProcessed sets processed=true with the terminal error and related message.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, id string, update domain.ProcessingUpdate) error {
	processedAt := update.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	fields := map[string]any{
		"processed":    true,
		"processed_at": processedAt,
		"updated_at":   time.Now(),
	}
	if update.Error != nil {
		fields["error"] = *update.Error
	}
	if update.RelatedMessageID != nil {
		fields["related_message_id"] = *update.RelatedMessageID
	}
	return r.update(ctx, id, fields, "failed to mark webhook event processed", "0c5b8e2f-7d4a-4193-b6f1-3e9a2d8c5b74")
}

// RecordError sets the error field without touching the processed state.
func (r *PostgresRepository) RecordError(ctx context.Context, id, message string) error {
	return r.update(ctx, id, map[string]any{
		"error":      message,
		"updated_at": time.Now(),
	}, "failed to record webhook event error", "d4f9a1b6-2e8c-4a57-9b03-6f1e7c4d8a29")
}

// ListStale claims unprocessed message events with FOR UPDATE SKIP LOCKED and bumps their attempts.
func (r *PostgresRepository) ListStale(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*domain.WebhookEvent, error) {
	var claimed []entities.WebhookEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("processed = ? AND event = ? AND attempts < ? AND created_at < ?", false, messagesUpsert, maxAttempts, olderThan).
			Order("created_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]string, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
			claimed[i].Attempts++
		}
		return tx.Model(&entities.WebhookEvent{}).
			Where("id IN ?", ids).
			Update("attempts", gorm.Expr("attempts + 1")).Error
	})
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to claim stale webhook events", err, "5e0a3c7d-9f2b-4e16-8c48-b1d6e3f9a072")
	}

	out := make([]*domain.WebhookEvent, len(claimed))
	for i := range claimed {
		out[i] = claimed[i].EtoD()
	}
	return out, nil
}

// CountStale returns how many message events are waiting for the sweeper.
func (r *PostgresRepository) CountStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.WebhookEvent{}).
		Where("processed = ? AND event = ? AND attempts < ? AND created_at < ?", false, messagesUpsert, maxAttempts, olderThan).
		Count(&count).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count stale webhook events", err, "a8c1f4e7-6b3d-4d92-b5a0-2e7f9c1d4b38")
	}
	return count, nil
}

func (r *PostgresRepository) update(ctx context.Context, id string, fields map[string]any, message, uuid string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.WebhookEvent{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, result.Error, uuid)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"webhook event not found", domain.ErrNotFound, uuid)
	}
	return nil
}
