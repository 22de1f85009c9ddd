package orchestrator

import (
	"context"
	"math/big"
	"sort"
	"time"

	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Failure reason recorded by the reconciliation sweep.
const ReasonExpired = "expired"

// recordPending registers a new in-flight operation under its message id
func (o *Orchestrator) recordPending(ctx context.Context, op *models.PendingOperation) {
	o.pending[op.MessageID] = op
	metrics.OperationsPending.Inc()
	o.persistPending(ctx, op)
	if o.pushFn != nil {
		o.pushFn(op)
	}
}

// transitionPending moves a Pending operation to a terminal status.
// Callers must check that the current status is Pending; terminal states
// are never overwritten.
func (o *Orchestrator) transitionPending(ctx context.Context, op *models.PendingOperation, status models.OperationStatus, reason string) {
	now := time.Now()
	op.Status = status
	op.FailureReason = reason
	op.CompletedAt = &now

	metrics.OperationsPending.Dec()
	outcome := "completed"
	if status == models.OperationStatusFailed {
		outcome = "failed"
	}
	metrics.OperationsCompleted.WithLabelValues(string(op.Type), outcome).Inc()

	o.persistPending(ctx, op)
	if o.pushFn != nil {
		o.pushFn(op)
	}
}

func (o *Orchestrator) persistPending(ctx context.Context, op *models.PendingOperation) {
	if o.store == nil {
		return
	}
	if err := o.store.SavePendingOperation(ctx, op); err != nil {
		o.log.WithError(err).WithField("message_id", op.MessageID).Warn("Failed to persist pending operation")
	}
}

// applyAllocationDelta adjusts the (strategy, asset) allocation record.
// Principal never goes below zero; records whose principal and value both
// reach zero are deactivated but kept for history.
func (o *Orchestrator) applyAllocationDelta(ctx context.Context, strategyID string, asset common.Address, principalDelta, valueDelta *big.Int) {
	key := allocationKey{strategyID: strategyID, asset: asset}
	state, ok := o.allocations[key]
	if !ok {
		state = &allocationState{
			id:           uuid.New().String(),
			strategyID:   strategyID,
			asset:        asset,
			principal:    big.NewInt(0),
			currentValue: big.NewInt(0),
			active:       true,
		}
		o.allocations[key] = state
	}

	state.principal.Add(state.principal, principalDelta)
	if state.principal.Sign() < 0 {
		state.principal.SetInt64(0)
	}
	state.currentValue.Add(state.currentValue, valueDelta)
	if state.currentValue.Sign() < 0 {
		state.currentValue.SetInt64(0)
	}
	if valueDelta.Sign() > 0 && principalDelta.Sign() == 0 {
		state.lastHarvest = time.Now()
	}
	state.active = state.principal.Sign() > 0 || state.currentValue.Sign() > 0

	o.persistAllocation(ctx, state)
}

// markHarvested stamps the harvest time on an existing allocation record.
// Used on the source side, where remote harvest yield settles into the
// vault pool and never passes through the record's value.
func (o *Orchestrator) markHarvested(ctx context.Context, strategyID string, asset common.Address) {
	state, ok := o.allocations[allocationKey{strategyID: strategyID, asset: asset}]
	if !ok {
		return
	}
	state.lastHarvest = time.Now()
	o.persistAllocation(ctx, state)
}

func (o *Orchestrator) persistAllocation(ctx context.Context, state *allocationState) {
	if o.store == nil {
		return
	}
	record := &models.Allocation{
		ID:              state.id,
		StrategyID:      state.strategyID,
		Asset:           state.asset.Hex(),
		Principal:       state.principal.String(),
		CurrentValue:    state.currentValue.String(),
		LastHarvestTime: state.lastHarvest,
		IsActive:        state.active,
	}
	if err := o.store.SaveAllocation(ctx, record); err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"strategy_id": state.strategyID,
			"asset":       state.asset.Hex(),
		}).Warn("Failed to persist allocation")
	}
}

// SweepExpired fails every Pending operation whose TTL has elapsed. For an
// expired DepositRequest the pulled funds were never confirmed remotely, so
// the vault's outstanding allocation is released. Returns the message ids
// that were expired.
func (o *Orchestrator) SweepExpired(ctx context.Context) ([]string, error) {
	if err := o.busy.Enter(); err != nil {
		return nil, err
	}
	defer o.busy.Exit()

	now := time.Now()
	var expired []string
	for _, op := range o.pending {
		if op.Status != models.OperationStatusPending || op.ExpiresAt.After(now) {
			continue
		}

		o.transitionPending(ctx, op, models.OperationStatusFailed, ReasonExpired)
		expired = append(expired, op.MessageID)

		if op.Type == models.OperationDepositRequest {
			amount, err := utils.ParseAmount(op.Amount)
			if err != nil {
				o.log.WithError(err).WithField("message_id", op.MessageID).Error("Corrupt amount on expired operation")
				continue
			}
			asset := common.HexToAddress(op.Asset)
			tokenID, ok := o.vault.TokenIDByAsset(asset)
			if !ok {
				o.log.WithField("asset", op.Asset).Error("Expired deposit references unknown asset")
				continue
			}
			if err := o.vault.ReturnFromStrategy(ctx, tokenID, amount, big.NewInt(0), o.account); err != nil {
				o.log.WithError(err).WithField("message_id", op.MessageID).Error("Failed to release allocation for expired deposit")
			}
		}

		o.log.WithFields(logrus.Fields{
			"message_id": op.MessageID,
			"type":       op.Type,
			"age":        now.Sub(op.CreatedAt).String(),
		}).Warn("Pending operation expired")
	}
	sort.Strings(expired)
	return expired, nil
}

// PendingOperation looks up an operation by message id
func (o *Orchestrator) PendingOperation(messageID string) (*models.PendingOperation, error) {
	op, ok := o.pending[messageID]
	if !ok {
		return nil, ErrUnknownOperation
	}
	clone := *op
	return &clone, nil
}

// ListOperations returns operations filtered by status; an empty status
// returns all. Ordered newest first.
func (o *Orchestrator) ListOperations(status models.OperationStatus) []*models.PendingOperation {
	ops := make([]*models.PendingOperation, 0, len(o.pending))
	for _, op := range o.pending {
		if status != "" && op.Status != status {
			continue
		}
		clone := *op
		ops = append(ops, &clone)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].CreatedAt.After(ops[j].CreatedAt) })
	return ops
}

// AllocationView a read-only snapshot of one (strategy, asset) allocation
type AllocationView struct {
	ID           string
	StrategyID   string
	Asset        common.Address
	Principal    *big.Int
	CurrentValue *big.Int
	LastHarvest  time.Time
	Active       bool
}

// Allocation snapshot for one strategy and asset
func (o *Orchestrator) Allocation(strategyID string, asset common.Address) (*AllocationView, bool) {
	state, ok := o.allocations[allocationKey{strategyID: strategyID, asset: asset}]
	if !ok {
		return nil, false
	}
	return snapshotAllocation(state), true
}

// Allocations snapshots of every allocation record
func (o *Orchestrator) Allocations() []*AllocationView {
	views := make([]*AllocationView, 0, len(o.allocations))
	for _, state := range o.allocations {
		views = append(views, snapshotAllocation(state))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].StrategyID != views[j].StrategyID {
			return views[i].StrategyID < views[j].StrategyID
		}
		return views[i].Asset.Hex() < views[j].Asset.Hex()
	})
	return views
}

func snapshotAllocation(state *allocationState) *AllocationView {
	return &AllocationView{
		ID:           state.id,
		StrategyID:   state.strategyID,
		Asset:        state.asset,
		Principal:    new(big.Int).Set(state.principal),
		CurrentValue: new(big.Int).Set(state.currentValue),
		LastHarvest:  state.lastHarvest,
		Active:       state.active,
	}
}

// Restore loads persisted state on startup. Must be called before the
// transport starts delivering messages.
func (o *Orchestrator) Restore(pending []*models.PendingOperation, processed []*models.ProcessedMessage, allocations []*models.Allocation) error {
	for _, op := range pending {
		clone := *op
		o.pending[op.MessageID] = &clone
		if op.Status == models.OperationStatusPending {
			metrics.OperationsPending.Inc()
		}
	}
	for _, msg := range processed {
		o.processed[msg.MessageID] = struct{}{}
	}
	for _, record := range allocations {
		principal, err := utils.ParseAmount(record.Principal)
		if err != nil {
			return err
		}
		value, err := utils.ParseAmount(record.CurrentValue)
		if err != nil {
			return err
		}
		asset := common.HexToAddress(record.Asset)
		o.allocations[allocationKey{strategyID: record.StrategyID, asset: asset}] = &allocationState{
			id:           record.ID,
			strategyID:   record.StrategyID,
			asset:        asset,
			principal:    principal,
			currentValue: value,
			lastHarvest:  record.LastHarvestTime,
			active:       record.IsActive,
		}
	}
	o.log.WithFields(logrus.Fields{
		"pending":     len(pending),
		"processed":   len(processed),
		"allocations": len(allocations),
	}).Info("Orchestrator state restored")
	return nil
}
