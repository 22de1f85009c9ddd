package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocationRepository defines the interface for Allocation data access
type AllocationRepository interface {
	Upsert(ctx context.Context, allocation *models.Allocation) error
	GetByStrategyAndAsset(ctx context.Context, strategyID, asset string) (*models.Allocation, error)
	FindByStrategy(ctx context.Context, strategyID string) ([]models.Allocation, error)
	FindActive(ctx context.Context) ([]models.Allocation, error)
	List(ctx context.Context) ([]models.Allocation, error)
}

// allocationRepository implements AllocationRepository
type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository creates a new AllocationRepository instance
func NewAllocationRepository(db *gorm.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

// Upsert inserts the allocation row or overwrites its mutable columns,
// keyed by (strategy_id, asset)
func (r *allocationRepository) Upsert(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "strategy_id"}, {Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"principal", "current_value", "last_harvest_time", "is_active", "updated_at",
		}),
	}).Create(allocation).Error
}

// GetByStrategyAndAsset retrieves one allocation record
func (r *allocationRepository) GetByStrategyAndAsset(ctx context.Context, strategyID, asset string) (*models.Allocation, error) {
	var allocation models.Allocation
	err := r.db.WithContext(ctx).
		Where("strategy_id = ? AND asset = ?", strategyID, asset).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

// FindByStrategy retrieves every allocation of one strategy
func (r *allocationRepository) FindByStrategy(ctx context.Context, strategyID string) ([]models.Allocation, error) {
	var allocations []models.Allocation
	err := r.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("asset ASC").
		Find(&allocations).Error
	return allocations, err
}

// FindActive retrieves every allocation with outstanding principal or value
func (r *allocationRepository) FindActive(ctx context.Context) ([]models.Allocation, error) {
	var allocations []models.Allocation
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("strategy_id ASC, asset ASC").
		Find(&allocations).Error
	return allocations, err
}

// List retrieves every allocation row
func (r *allocationRepository) List(ctx context.Context) ([]models.Allocation, error) {
	var allocations []models.Allocation
	err := r.db.WithContext(ctx).Order("strategy_id ASC, asset ASC").Find(&allocations).Error
	return allocations, err
}
