package repository

import (
	"context"
	"time"

	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"

	"gorm.io/gorm"
)

// Store bundles the repositories behind the persistence interfaces the
// vault, registry and orchestrator engines accept. Write errors surface
// to the engines, which log and continue; the in-memory state stays
// authoritative.
type Store struct {
	Ledgers           LedgerRepository
	Positions         PositionRepository
	Strategies        StrategyRepository
	SupportedChains   SupportedChainRepository
	Allocations       AllocationRepository
	PendingOperations PendingOperationRepository
	ProcessedMessages ProcessedMessageRepository
}

// NewStore creates a Store over one database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Ledgers:           NewLedgerRepository(db),
		Positions:         NewPositionRepository(db),
		Strategies:        NewStrategyRepository(db),
		SupportedChains:   NewSupportedChainRepository(db),
		Allocations:       NewAllocationRepository(db),
		PendingOperations: NewPendingOperationRepository(db),
		ProcessedMessages: NewProcessedMessageRepository(db),
	}
}

// SaveLedger implements the vault's ledger sink
func (s *Store) SaveLedger(ctx context.Context, ledger *models.AssetLedger) error {
	defer observe("save_ledger")()
	return s.Ledgers.Upsert(ctx, ledger)
}

// SavePosition implements the vault's position sink
func (s *Store) SavePosition(ctx context.Context, position *models.Position) error {
	defer observe("save_position")()
	return s.Positions.Upsert(ctx, position)
}

// SaveStrategy implements the registry's strategy sink
func (s *Store) SaveStrategy(ctx context.Context, strategy *models.Strategy) error {
	defer observe("save_strategy")()
	return s.Strategies.Upsert(ctx, strategy)
}

// SaveSupportedChain implements the registry's chain sink
func (s *Store) SaveSupportedChain(ctx context.Context, chain *models.SupportedChain) error {
	defer observe("save_supported_chain")()
	return s.SupportedChains.Upsert(ctx, chain)
}

// SavePendingOperation implements the orchestrator's operation sink
func (s *Store) SavePendingOperation(ctx context.Context, op *models.PendingOperation) error {
	defer observe("save_pending_operation")()
	return s.PendingOperations.Upsert(ctx, op)
}

// SaveProcessedMessage implements the orchestrator's idempotency sink
func (s *Store) SaveProcessedMessage(ctx context.Context, msg *models.ProcessedMessage) error {
	defer observe("save_processed_message")()
	return s.ProcessedMessages.Record(ctx, msg)
}

// SaveAllocation implements the orchestrator's allocation sink
func (s *Store) SaveAllocation(ctx context.Context, allocation *models.Allocation) error {
	defer observe("save_allocation")()
	return s.Allocations.Upsert(ctx, allocation)
}

func observe(queryType string) func() {
	start := time.Now()
	return func() {
		metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
	}
}
