package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/utils"
	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// OnMessage processes one delivered cross-chain message. Invoked by the
// transport. Replayed message ids fail with ErrDuplicateMessage before any
// state is touched; each id is applied at most once.
func (o *Orchestrator) OnMessage(ctx context.Context, msg *models.CrossChainMessage) error {
	if err := o.busy.Enter(); err != nil {
		return err
	}
	defer o.busy.Exit()

	start := time.Now()
	msgType := string(msg.Type)
	metrics.MessagesReceived.WithLabelValues(msgType).Inc()

	if _, seen := o.processed[msg.ID]; seen {
		metrics.MessagesDuplicate.Inc()
		return ErrDuplicateMessage
	}
	o.processed[msg.ID] = struct{}{}
	if o.store != nil {
		if err := o.store.SaveProcessedMessage(ctx, &models.ProcessedMessage{MessageID: msg.ID, ReceivedAt: time.Now()}); err != nil {
			o.log.WithError(err).WithField("message_id", msg.ID).Warn("Failed to persist processed message id")
		}
	}

	// Bundled funds are materialized into the local account before the
	// handler runs, so any pull the handler triggers is funded.
	if msg.Transfer != nil {
		amount, err := utils.ParseAmount(msg.Transfer.Amount)
		if err != nil {
			metrics.MessagesFailed.WithLabelValues(msgType, "bad_transfer").Inc()
			return err
		}
		if amount.Sign() > 0 {
			if err := o.funds.Credit(ctx, common.HexToAddress(msg.Transfer.Asset), o.account, amount); err != nil {
				metrics.MessagesFailed.WithLabelValues(msgType, "credit_failed").Inc()
				return fmt.Errorf("bundled transfer credit failed: %w", err)
			}
		}
	}

	var err error
	switch msg.Type {
	case models.OperationDepositRequest:
		err = o.handleDepositRequest(ctx, msg)
	case models.OperationDepositConfirmation:
		err = o.handleDepositConfirmation(ctx, msg)
	case models.OperationWithdrawRequest:
		err = o.handleWithdrawRequest(ctx, msg)
	case models.OperationWithdrawConfirmation:
		err = o.handleWithdrawConfirmation(ctx, msg)
	case models.OperationHarvestRequest:
		err = o.handleHarvestRequest(ctx, msg)
	case models.OperationFailureNotice:
		err = o.handleFailureNotice(ctx, msg)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Type)
	}

	if err != nil {
		metrics.MessagesFailed.WithLabelValues(msgType, "process_error").Inc()
		o.log.WithError(err).WithFields(logrus.Fields{
			"message_id": msg.ID,
			"type":       msgType,
		}).Error("Inbound message processing failed")
		return err
	}

	metrics.MessagesProcessed.WithLabelValues(msgType).Inc()
	metrics.MessageProcessingDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
	return nil
}

// handleDepositRequest destination side: execute the strategy deposit with
// the attached funds and confirm back to the source
func (o *Orchestrator) handleDepositRequest(ctx context.Context, msg *models.CrossChainMessage) error {
	amount, err := utils.ParseAmount(msg.Amount)
	if err != nil {
		return err
	}
	asset := common.HexToAddress(msg.Asset)

	adapter, adapterErr := o.registry.AdapterFor(msg.StrategyID)
	if adapterErr == nil {
		adapterErr = adapter.Deposit(ctx, asset, amount)
	}
	if adapterErr != nil {
		o.log.WithError(adapterErr).WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"strategy_id": msg.StrategyID,
		}).Warn("Remote deposit execution failed, returning funds")
		return o.sendFailureNotice(msg, adapterErr.Error(), true)
	}

	// Destination-side bookkeeping mirrors the source's eventual state.
	o.applyAllocationDelta(ctx, msg.StrategyID, asset, amount, amount)
	if err := o.registry.AddAllocated(ctx, msg.StrategyID, amount); err != nil {
		o.log.WithError(err).WithField("strategy_id", msg.StrategyID).Warn("Failed to update strategy allocation total")
	}

	confirmation := &models.CrossChainMessage{
		Type:          models.OperationDepositConfirmation,
		SourceChainID: o.chainID,
		DestChainID:   msg.SourceChainID,
		StrategyID:    msg.StrategyID,
		PoolID:        msg.PoolID,
		Asset:         msg.Asset,
		Amount:        msg.Amount,
		RefMessageID:  msg.ID,
	}
	if _, err := o.sendPaid(msg.SourceChainID, confirmation); err != nil {
		// The deposit is committed; a lost confirmation leaves the source
		// Pending until its reconciliation sweep notices.
		return fmt.Errorf("deposit executed but confirmation send failed: %w", err)
	}
	return nil
}

// handleDepositConfirmation source side: complete the pending operation
// and only now apply the principal to the allocation ledger
func (o *Orchestrator) handleDepositConfirmation(ctx context.Context, msg *models.CrossChainMessage) error {
	op, ok := o.pending[msg.RefMessageID]
	if !ok {
		o.log.WithField("ref_message_id", msg.RefMessageID).Warn("Deposit confirmation without matching operation")
		return nil
	}
	if op.Status != models.OperationStatusPending {
		o.log.WithFields(logrus.Fields{
			"message_id": op.MessageID,
			"status":     op.Status,
		}).Warn("Deposit confirmation for terminal operation ignored")
		return nil
	}

	amount, err := utils.ParseAmount(msg.Amount)
	if err != nil {
		return err
	}
	asset := common.HexToAddress(msg.Asset)

	o.transitionPending(ctx, op, models.OperationStatusCompleted, "")
	o.applyAllocationDelta(ctx, op.StrategyID, asset, amount, amount)
	if err := o.registry.AddAllocated(ctx, op.StrategyID, amount); err != nil {
		o.log.WithError(err).WithField("strategy_id", op.StrategyID).Warn("Failed to update strategy allocation total")
	}

	o.log.WithFields(logrus.Fields{
		"message_id":  op.MessageID,
		"strategy_id": op.StrategyID,
		"amount":      amount.String(),
	}).Info("Remote deposit confirmed")
	return nil
}

// handleWithdrawRequest destination side: execute the adapter withdrawal
// and ship the funds back attached to a WithdrawConfirmation
func (o *Orchestrator) handleWithdrawRequest(ctx context.Context, msg *models.CrossChainMessage) error {
	amount, err := utils.ParseAmount(msg.Amount)
	if err != nil {
		return err
	}
	asset := common.HexToAddress(msg.Asset)

	adapter, adapterErr := o.registry.AdapterFor(msg.StrategyID)
	var actual *big.Int
	if adapterErr == nil {
		actual, adapterErr = adapter.Withdraw(ctx, asset, amount)
	}
	if adapterErr != nil {
		o.log.WithError(adapterErr).WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"strategy_id": msg.StrategyID,
		}).Warn("Remote withdrawal execution failed")
		return o.sendFailureNotice(msg, adapterErr.Error(), false)
	}

	principal := utils.MinBig(new(big.Int).Set(amount), new(big.Int).Set(actual))
	yield := new(big.Int).Sub(actual, principal)

	o.applyAllocationDelta(ctx, msg.StrategyID, asset, new(big.Int).Neg(principal), new(big.Int).Neg(actual))
	if err := o.registry.AddAllocated(ctx, msg.StrategyID, new(big.Int).Neg(principal)); err != nil {
		o.log.WithError(err).WithField("strategy_id", msg.StrategyID).Warn("Failed to update strategy allocation total")
	}

	confirmation := &models.CrossChainMessage{
		Type:          models.OperationWithdrawConfirmation,
		SourceChainID: o.chainID,
		DestChainID:   msg.SourceChainID,
		StrategyID:    msg.StrategyID,
		PoolID:        msg.PoolID,
		Asset:         msg.Asset,
		Amount:        principal.String(),
		YieldAmount:   yield.String(),
		RefMessageID:  msg.ID,
		Transfer:      &models.BundledTransfer{Asset: msg.Asset, Amount: actual.String()},
	}
	if _, err := o.sendPaid(msg.SourceChainID, confirmation); err != nil {
		return fmt.Errorf("withdrawal executed but confirmation send failed: %w", err)
	}
	return nil
}

// handleWithdrawConfirmation source side: forward the attached funds into
// the vault and complete the pending operation. Funds are forwarded even
// when no matching operation is found; attached transfers must never be
// stranded.
func (o *Orchestrator) handleWithdrawConfirmation(ctx context.Context, msg *models.CrossChainMessage) error {
	principal, err := utils.ParseAmount(msg.Amount)
	if err != nil {
		return err
	}
	yield, err := utils.ParseAmount(msg.YieldAmount)
	if err != nil {
		return err
	}
	asset := common.HexToAddress(msg.Asset)

	tokenID, ok := o.vault.TokenIDByAsset(asset)
	if !ok {
		return vaultUnknownAsset(asset)
	}
	if err := o.vault.ReturnFromStrategy(ctx, tokenID, principal, yield, o.account); err != nil {
		return err
	}

	op, found := o.pending[msg.RefMessageID]
	if found && op.Status == models.OperationStatusPending {
		o.transitionPending(ctx, op, models.OperationStatusCompleted, "")
	} else if !found {
		o.log.WithField("ref_message_id", msg.RefMessageID).Warn("Withdraw confirmation without matching operation, funds returned to vault")
	}

	// The source record carries principal only; realized yield flows into
	// the vault pool above, never through the allocation value.
	if principal.Sign() > 0 {
		negPrincipal := new(big.Int).Neg(principal)
		o.applyAllocationDelta(ctx, msg.StrategyID, asset, negPrincipal, negPrincipal)
		if err := o.registry.AddAllocated(ctx, msg.StrategyID, negPrincipal); err != nil {
			o.log.WithError(err).WithField("strategy_id", msg.StrategyID).Warn("Failed to update strategy allocation total")
		}
	}
	if found && op.Type == models.OperationHarvestRequest && yield.Sign() > 0 {
		o.markHarvested(ctx, msg.StrategyID, asset)
	}

	o.log.WithFields(logrus.Fields{
		"strategy_id": msg.StrategyID,
		"principal":   principal.String(),
		"yield":       yield.String(),
	}).Info("Remote withdrawal settled")
	return nil
}

// handleHarvestRequest destination side: realize yield and forward the
// proceeds through the same return path as a withdrawal
func (o *Orchestrator) handleHarvestRequest(ctx context.Context, msg *models.CrossChainMessage) error {
	asset := common.HexToAddress(msg.Asset)

	adapter, adapterErr := o.registry.AdapterFor(msg.StrategyID)
	var yield *big.Int
	if adapterErr == nil {
		yield, adapterErr = adapter.Harvest(ctx, asset)
	}
	if adapterErr != nil {
		o.log.WithError(adapterErr).WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"strategy_id": msg.StrategyID,
		}).Warn("Remote harvest execution failed")
		return o.sendFailureNotice(msg, adapterErr.Error(), false)
	}

	confirmation := &models.CrossChainMessage{
		Type:          models.OperationWithdrawConfirmation,
		SourceChainID: o.chainID,
		DestChainID:   msg.SourceChainID,
		StrategyID:    msg.StrategyID,
		Asset:         msg.Asset,
		Amount:        "0",
		YieldAmount:   yield.String(),
		RefMessageID:  msg.ID,
		Transfer:      &models.BundledTransfer{Asset: msg.Asset, Amount: yield.String()},
	}
	if _, err := o.sendPaid(msg.SourceChainID, confirmation); err != nil {
		return fmt.Errorf("harvest executed but confirmation send failed: %w", err)
	}
	return nil
}

// handleFailureNotice source side: fail the pending operation and refund
// any returned principal to the vault
func (o *Orchestrator) handleFailureNotice(ctx context.Context, msg *models.CrossChainMessage) error {
	op, ok := o.pending[msg.RefMessageID]
	if ok && op.Status == models.OperationStatusPending {
		o.transitionPending(ctx, op, models.OperationStatusFailed, msg.Reason)
	} else if !ok {
		o.log.WithField("ref_message_id", msg.RefMessageID).Warn("Failure notice without matching operation")
	}

	if msg.Transfer != nil {
		amount, err := utils.ParseAmount(msg.Transfer.Amount)
		if err != nil {
			return err
		}
		asset := common.HexToAddress(msg.Transfer.Asset)
		tokenID, found := o.vault.TokenIDByAsset(asset)
		if !found {
			return vaultUnknownAsset(asset)
		}
		if err := o.vault.ReturnFromStrategy(ctx, tokenID, amount, big.NewInt(0), o.account); err != nil {
			return err
		}
	}
	return nil
}

// sendFailureNotice reports a destination-side execution failure back to
// the source, returning the attached funds when returnFunds is set
func (o *Orchestrator) sendFailureNotice(origin *models.CrossChainMessage, reason string, returnFunds bool) error {
	notice := &models.CrossChainMessage{
		Type:          models.OperationFailureNotice,
		SourceChainID: o.chainID,
		DestChainID:   origin.SourceChainID,
		StrategyID:    origin.StrategyID,
		PoolID:        origin.PoolID,
		Asset:         origin.Asset,
		Amount:        origin.Amount,
		RefMessageID:  origin.ID,
		Reason:        reason,
	}
	if returnFunds && origin.Transfer != nil {
		notice.Transfer = &models.BundledTransfer{Asset: origin.Transfer.Asset, Amount: origin.Transfer.Amount}
	}
	if _, err := o.sendPaid(origin.SourceChainID, notice); err != nil {
		return fmt.Errorf("failure notice send failed: %w", err)
	}
	return nil
}

func vaultUnknownAsset(asset common.Address) error {
	return fmt.Errorf("%w: no ledger for asset %s", vault.ErrUnknownToken, asset.Hex())
}
