package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionRepository defines the interface for Position data access
type PositionRepository interface {
	Upsert(ctx context.Context, position *models.Position) error
	GetByHolder(ctx context.Context, tokenID uint32, holder string) (*models.Position, error)
	FindByHolder(ctx context.Context, holder string) ([]models.Position, error)
	List(ctx context.Context) ([]models.Position, error)
}

// positionRepository implements PositionRepository
type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new PositionRepository instance
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

// Upsert inserts the position row or overwrites its share balance.
// Assigns the row id on first insert.
func (r *positionRepository) Upsert(ctx context.Context, position *models.Position) error {
	if position.ID == "" {
		position.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"shares", "updated_at"}),
	}).Create(position).Error
}

// GetByHolder retrieves one position by ledger and holder
func (r *positionRepository) GetByHolder(ctx context.Context, tokenID uint32, holder string) (*models.Position, error) {
	var position models.Position
	err := r.db.WithContext(ctx).
		Where("token_id = ? AND holder = ?", tokenID, holder).
		First(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// FindByHolder retrieves every position of one holder across ledgers
func (r *positionRepository) FindByHolder(ctx context.Context, holder string) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("holder = ?", holder).
		Order("token_id ASC").
		Find(&positions).Error
	return positions, err
}

// List retrieves every position row
func (r *positionRepository) List(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).Order("token_id ASC, holder ASC").Find(&positions).Error
	return positions, err
}
