package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StrategyRepository defines the interface for Strategy data access
type StrategyRepository interface {
	Upsert(ctx context.Context, strategy *models.Strategy) error
	GetByID(ctx context.Context, id string) (*models.Strategy, error)
	FindByChain(ctx context.Context, chainID uint32) ([]models.Strategy, error)
	List(ctx context.Context) ([]models.Strategy, error)
}

// strategyRepository implements StrategyRepository
type strategyRepository struct {
	db *gorm.DB
}

// NewStrategyRepository creates a new StrategyRepository instance
func NewStrategyRepository(db *gorm.DB) StrategyRepository {
	return &strategyRepository{db: db}
}

// Upsert inserts the strategy row or overwrites its mutable columns.
// Identity columns (name, chain, adapter) are frozen at registration.
func (r *strategyRepository) Upsert(ctx context.Context, strategy *models.Strategy) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_allocated", "is_active", "last_update_time", "updated_at",
		}),
	}).Create(strategy).Error
}

// GetByID retrieves a strategy by ID
func (r *strategyRepository) GetByID(ctx context.Context, id string) (*models.Strategy, error) {
	var strategy models.Strategy
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&strategy).Error
	if err != nil {
		return nil, err
	}
	return &strategy, nil
}

// FindByChain retrieves every strategy registered for a chain
func (r *strategyRepository) FindByChain(ctx context.Context, chainID uint32) ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("created_at ASC").
		Find(&strategies).Error
	return strategies, err
}

// List retrieves every strategy row
func (r *strategyRepository) List(ctx context.Context) ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&strategies).Error
	return strategies, err
}
