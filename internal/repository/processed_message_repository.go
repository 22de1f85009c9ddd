package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedMessageRepository defines the interface for ProcessedMessage data access
type ProcessedMessageRepository interface {
	Record(ctx context.Context, msg *models.ProcessedMessage) error
	Exists(ctx context.Context, messageID string) (bool, error)
	List(ctx context.Context) ([]models.ProcessedMessage, error)
}

type processedMessageRepository struct {
	db *gorm.DB
}

// NewProcessedMessageRepository creates a new ProcessedMessageRepository instance
func NewProcessedMessageRepository(db *gorm.DB) ProcessedMessageRepository {
	return &processedMessageRepository{db: db}
}

// Record inserts the message id; replays are a no-op
func (r *processedMessageRepository) Record(ctx context.Context, msg *models.ProcessedMessage) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error
}

// Exists reports whether the message id was already recorded
func (r *processedMessageRepository) Exists(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return count > 0, err
}

// List retrieves every processed message id
func (r *processedMessageRepository) List(ctx context.Context) ([]models.ProcessedMessage, error) {
	var msgs []models.ProcessedMessage
	err := r.db.WithContext(ctx).Find(&msgs).Error
	return msgs, err
}
