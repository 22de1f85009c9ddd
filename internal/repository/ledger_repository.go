package repository

import (
	"context"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository defines the interface for AssetLedger data access
type LedgerRepository interface {
	Upsert(ctx context.Context, ledger *models.AssetLedger) error
	GetByTokenID(ctx context.Context, tokenID uint32) (*models.AssetLedger, error)
	GetByAsset(ctx context.Context, asset string) (*models.AssetLedger, error)
	List(ctx context.Context) ([]models.AssetLedger, error)
	ListActive(ctx context.Context) ([]models.AssetLedger, error)
}

// ledgerRepository implements LedgerRepository
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Upsert inserts the ledger row or overwrites its mutable columns
func (r *ledgerRepository) Upsert(ctx context.Context, ledger *models.AssetLedger) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_pooled", "allocated_out", "total_shares", "yield_earned",
			"is_active", "last_update_time", "updated_at",
		}),
	}).Create(ledger).Error
}

// GetByTokenID retrieves a ledger by token id
func (r *ledgerRepository) GetByTokenID(ctx context.Context, tokenID uint32) (*models.AssetLedger, error) {
	var ledger models.AssetLedger
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&ledger).Error
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// GetByAsset retrieves a ledger by asset address
func (r *ledgerRepository) GetByAsset(ctx context.Context, asset string) (*models.AssetLedger, error) {
	var ledger models.AssetLedger
	err := r.db.WithContext(ctx).Where("asset = ?", asset).First(&ledger).Error
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// List retrieves every ledger ordered by token id
func (r *ledgerRepository) List(ctx context.Context) ([]models.AssetLedger, error) {
	var ledgers []models.AssetLedger
	err := r.db.WithContext(ctx).Order("token_id ASC").Find(&ledgers).Error
	return ledgers, err
}

// ListActive retrieves every active ledger ordered by token id
func (r *ledgerRepository) ListActive(ctx context.Context) ([]models.AssetLedger, error) {
	var ledgers []models.AssetLedger
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("token_id ASC").Find(&ledgers).Error
	return ledgers, err
}
