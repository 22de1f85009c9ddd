package models

import (
	"time"
)

// OperationType cross-chain operation / message type
type OperationType string

const (
	OperationDepositRequest       OperationType = "deposit_request"
	OperationWithdrawRequest      OperationType = "withdraw_request"
	OperationHarvestRequest       OperationType = "harvest_request"
	OperationDepositConfirmation  OperationType = "deposit_confirmation"
	OperationWithdrawConfirmation OperationType = "withdraw_confirmation"
	OperationFailureNotice        OperationType = "failure_notice"
)

// OperationStatus pending cross-chain operation status
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

// Terminal reports whether the status admits no further transition
func (s OperationStatus) Terminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed
}

// AssetLedger per-asset pooled balance ledger.
// Amounts are decimal strings; the vault engine holds the authoritative
// big.Int state and writes rows through the ledger repository.
type AssetLedger struct {
	TokenID        uint32    `json:"token_id" gorm:"primaryKey;autoIncrement:false"`
	Asset          string    `json:"asset" gorm:"size:66;uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"size:64"`
	TotalPooled    string    `json:"total_pooled" gorm:"type:numeric;not null;default:0"`
	AllocatedOut   string    `json:"allocated_out" gorm:"type:numeric;not null;default:0"`
	TotalShares    string    `json:"total_shares" gorm:"type:numeric;not null;default:0"`
	YieldEarned    string    `json:"yield_earned" gorm:"type:numeric;not null;default:0"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	LastUpdateTime time.Time `json:"last_update_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Position shares owned by a holder in one asset ledger.
// Zeroed, never deleted, when fully redeemed.
type Position struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"` // UUID
	TokenID   uint32    `json:"token_id" gorm:"uniqueIndex:idx_holder_token;not null"`
	Holder    string    `json:"holder" gorm:"size:66;uniqueIndex:idx_holder_token;not null"`
	Shares    string    `json:"shares" gorm:"type:numeric;not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Strategy registered yield strategy metadata.
// Identity fields are immutable after registration; allocation totals are not.
type Strategy struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	ChainID        uint32    `json:"chain_id" gorm:"index;not null"`
	AdapterKind    string    `json:"adapter_kind" gorm:"size:64;not null"` // registry key of the StrategyAdapter implementation
	AdapterAddress string    `json:"adapter_address" gorm:"size:66"`
	TotalAllocated string    `json:"total_allocated" gorm:"type:numeric;not null;default:0"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	LastUpdateTime time.Time `json:"last_update_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SupportedChain destination chains strategies may be registered for
type SupportedChain struct {
	ChainID   uint32    `json:"chain_id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
}

// Allocation funds lent to a strategy for one asset.
// Deactivated, never deleted, when principal returns to zero.
type Allocation struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"` // UUID
	StrategyID      string    `json:"strategy_id" gorm:"uniqueIndex:idx_strategy_asset;size:36;not null"`
	Asset           string    `json:"asset" gorm:"uniqueIndex:idx_strategy_asset;size:66;not null"`
	Principal       string    `json:"principal" gorm:"type:numeric;not null;default:0"`
	CurrentValue    string    `json:"current_value" gorm:"type:numeric;not null;default:0"`
	LastHarvestTime time.Time `json:"last_harvest_time"`
	IsActive        bool      `json:"is_active" gorm:"default:true"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PendingOperation one outbound cross-chain message awaiting its confirmation.
// Keyed by the transport-assigned message id. Transitions exactly once,
// pending -> completed or pending -> failed; terminal states are immutable.
type PendingOperation struct {
	MessageID     string          `json:"message_id" gorm:"primaryKey;size:36"`
	Type          OperationType   `json:"type" gorm:"size:32;index;not null"`
	SourceChainID uint32          `json:"source_chain_id" gorm:"not null"`
	DestChainID   uint32          `json:"dest_chain_id" gorm:"not null"`
	StrategyID    string          `json:"strategy_id" gorm:"size:36;index"`
	TokenID       uint32          `json:"token_id"`
	Asset         string          `json:"asset" gorm:"size:66"`
	Amount        string          `json:"amount" gorm:"type:numeric;not null;default:0"`
	PoolID        string          `json:"pool_id" gorm:"size:36;index"`
	DepositID     string          `json:"deposit_id" gorm:"size:36;index"`
	Status        OperationStatus `json:"status" gorm:"size:16;index;not null"`
	FailureReason string          `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at" gorm:"index"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProcessedMessage inbound message id already handled by OnMessage.
// Retained indefinitely; the sole idempotency record shared across deliveries.
type ProcessedMessage struct {
	MessageID  string    `json:"message_id" gorm:"primaryKey;size:36"`
	ReceivedAt time.Time `json:"received_at"`
}
