package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domain "github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/database/entities"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

const uniqueViolation = "23505"

// PostgresRepository persists chats, interactions and messages.
type PostgresRepository struct {
	db *gorm.DB
}

var _ domain.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindChat returns the chat for the agent and phone, or nil when absent.
func (r *PostgresRepository) FindChat(ctx context.Context, agentID, phone string) (*domain.Chat, error) {
	var entity entities.Chat
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND whatsapp_phone = ?", agentID, phone).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find chat", err, "f1c7a3e9-5b2d-4e80-9a6f-3d8b1e4c7a25")
	}
	return entity.EtoD(), nil
}

// CreateChatWithInteraction stores the chat and its interaction in one transaction.
// A concurrent insert for the same agent and phone yields ErrChatExists.
func (r *PostgresRepository) CreateChatWithInteraction(ctx context.Context, chat *domain.Chat, interaction *domain.Interaction) error {
	chatEntity := entities.NewChat(chat)
	var interactionEntity *entities.Interaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chatEntity).Error; err != nil {
			return err
		}
		interaction.ChatID = chatEntity.ID
		interactionEntity = entities.NewInteraction(interaction)
		return tx.Create(interactionEntity).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrChatExists
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create chat", err, "2b8d4f1a-7e3c-4a96-b5d0-8c1f6e9a3b47")
	}

	chat.ID = chatEntity.ID
	chat.CreatedAt = chatEntity.CreatedAt
	chat.UpdatedAt = chatEntity.UpdatedAt
	interaction.ID = interactionEntity.ID
	interaction.CreatedAt = interactionEntity.CreatedAt
	return nil
}

// CreateMessage inserts a message and fills its id.
func (r *PostgresRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	entity := entities.NewMessage(msg)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create message", err, "7a3e9c5b-1d4f-4b28-8e60-4f2a7d1c9b83")
	}
	msg.ID = entity.ID
	msg.CreatedAt = entity.CreatedAt
	return nil
}

// FindMessage returns the message by id.
func (r *PostgresRepository) FindMessage(ctx context.Context, id string) (*domain.Message, error) {
	var entity entities.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"message not found", domain.ErrMessageNotFound, "c6f0b2d8-4a9e-4c13-a7b5-1e8d3f6a2c94")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find message", err, "8e4a1d7c-3b6f-4f52-9c08-5d2e9b7a1f36")
	}
	return entity.EtoD(), nil
}

// IncrementUnread bumps the unread counter in a single statement.
func (r *PostgresRepository) IncrementUnread(ctx context.Context, chatID string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{
			"unread_count": gorm.Expr("unread_count + 1"),
			"read":         false,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to increment unread count", result.Error, "3d9b6e2a-8f1c-4d75-b4a3-7e0c2f8d5a61")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"chat not found", nil, "9f5c2a8e-6d3b-4e17-8a94-0b6d1c7e3f52")
	}
	return nil
}

// UpdateDelivery writes the delivery outcome on the message.
func (r *PostgresRepository) UpdateDelivery(ctx context.Context, messageID string, record domain.DeliveryRecord) error {
	fields := map[string]any{
		"sent_to_evolution": record.Sent,
		"sent_at":           record.SentAt,
		"failed_at":         record.FailedAt,
		"fail_reason":       record.FailReason,
	}
	if record.ProviderMessageID != nil {
		fields["whatsapp_message_id"] = *record.ProviderMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&entities.Message{}).
		Where("id = ?", messageID).
		Updates(fields)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update message delivery", result.Error, "e2a7d4b9-0c5f-4a38-9e61-6b3f8d1a4c07")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"message not found", domain.ErrMessageNotFound, "4c1f8b6d-2e9a-4d05-a3c7-8f5e0b2d9a14")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
