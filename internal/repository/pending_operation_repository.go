package repository

import (
	"context"
	"time"

	"chainvault-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingOperationRepository defines the interface for PendingOperation data access
type PendingOperationRepository interface {
	Upsert(ctx context.Context, op *models.PendingOperation) error
	GetByMessageID(ctx context.Context, messageID string) (*models.PendingOperation, error)
	FindByStatus(ctx context.Context, status models.OperationStatus) ([]models.PendingOperation, error)
	FindByDepositID(ctx context.Context, depositID string) ([]models.PendingOperation, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.PendingOperation, error)
	List(ctx context.Context) ([]models.PendingOperation, error)
}

// pendingOperationRepository implements PendingOperationRepository
type pendingOperationRepository struct {
	db *gorm.DB
}

// NewPendingOperationRepository creates a new PendingOperationRepository instance
func NewPendingOperationRepository(db *gorm.DB) PendingOperationRepository {
	return &pendingOperationRepository{db: db}
}

// Upsert inserts the operation row or overwrites its status columns
func (r *pendingOperationRepository) Upsert(ctx context.Context, op *models.PendingOperation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "failure_reason", "completed_at", "updated_at",
		}),
	}).Create(op).Error
}

// GetByMessageID retrieves an operation by its message id
func (r *pendingOperationRepository) GetByMessageID(ctx context.Context, messageID string) (*models.PendingOperation, error) {
	var op models.PendingOperation
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// FindByStatus retrieves operations in the given status, newest first
func (r *pendingOperationRepository) FindByStatus(ctx context.Context, status models.OperationStatus) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&ops).Error
	return ops, err
}

// FindByDepositID retrieves every operation grouped under one invest call
func (r *pendingOperationRepository) FindByDepositID(ctx context.Context, depositID string) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	err := r.db.WithContext(ctx).
		Where("deposit_id = ?", depositID).
		Order("created_at ASC").
		Find(&ops).Error
	return ops, err
}

// FindExpired retrieves pending operations whose TTL elapsed before now
func (r *pendingOperationRepository) FindExpired(ctx context.Context, now time.Time) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.OperationStatusPending, now).
		Order("expires_at ASC").
		Find(&ops).Error
	return ops, err
}

// List retrieves every operation row, newest first
func (r *pendingOperationRepository) List(ctx context.Context) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ops).Error
	return ops, err
}
