package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupportedChainRepository defines the interface for SupportedChain data access
type SupportedChainRepository interface {
	Upsert(ctx context.Context, chain *models.SupportedChain) error
	List(ctx context.Context) ([]models.SupportedChain, error)
}

type supportedChainRepository struct {
	db *gorm.DB
}

// NewSupportedChainRepository creates a new SupportedChainRepository instance
func NewSupportedChainRepository(db *gorm.DB) SupportedChainRepository {
	return &supportedChainRepository{db: db}
}

// Upsert inserts the chain row, updating the name on conflict
func (r *supportedChainRepository) Upsert(ctx context.Context, chain *models.SupportedChain) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(chain).Error
}

// List retrieves every supported chain ordered by chain id
func (r *supportedChainRepository) List(ctx context.Context) ([]models.SupportedChain, error) {
	var chains []models.SupportedChain
	err := r.db.WithContext(ctx).Order("chain_id ASC").Find(&chains).Error
	return chains, err
}
