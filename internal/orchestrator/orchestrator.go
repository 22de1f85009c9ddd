// Package orchestrator turns a single logical invest/withdraw/harvest
// request into either a synchronous local strategy call or an
// asynchronous, message-correlated cross-chain round trip. Each chain runs
// one instance; instances coordinate purely by message passing and never
// read each other's ledgers.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"chainvault-backend/internal/guard"
	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/registry"
	"chainvault-backend/internal/utils"
	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transport cross-chain messaging collaborator. Send assigns and returns
// the unique message id. Delivery is unordered, unguaranteed and may be
// arbitrarily delayed; inbound deliveries invoke OnMessage.
type Transport interface {
	GetFee(destChainID uint32, msg *models.CrossChainMessage) (*big.Int, error)
	Send(destChainID uint32, msg *models.CrossChainMessage) (string, error)
}

// SwapRouter converts between assets on the local chain. Used only on the
// local invest path to consolidate heterogeneous pulled assets.
type SwapRouter interface {
	Swap(ctx context.Context, from, to common.Address, amount *big.Int) (*big.Int, error)
}

// FundsGateway materializes bundled transfers arriving with inbound
// messages into local custody. Credits land on the orchestrator fund
// account, the same account the vault pulls returned funds from.
type FundsGateway interface {
	Credit(ctx context.Context, asset, account common.Address, amount *big.Int) error
}

// OperationStore persists pending operations, processed message ids and
// allocation records
type OperationStore interface {
	SavePendingOperation(ctx context.Context, op *models.PendingOperation) error
	SaveProcessedMessage(ctx context.Context, msg *models.ProcessedMessage) error
	SaveAllocation(ctx context.Context, allocation *models.Allocation) error
}

type allocationKey struct {
	strategyID string
	asset      common.Address
}

type allocationState struct {
	id           string
	strategyID   string
	asset        common.Address
	principal    *big.Int
	currentValue *big.Int
	lastHarvest  time.Time
	active       bool
}

// Orchestrator the per-chain coordination engine. Mutating entry points
// acquire the busy guard; one call runs to completion or is reverted.
type Orchestrator struct {
	busy guard.Busy

	chainID uint32
	account common.Address // fund account used for vault transfers

	vault    *vault.Vault
	registry *registry.Registry
	transport Transport
	swap      SwapRouter
	funds     FundsGateway

	feeBalance *big.Int
	pendingTTL time.Duration

	pending     map[string]*models.PendingOperation
	processed   map[string]struct{}
	allocations map[allocationKey]*allocationState

	store  OperationStore // optional
	pushFn func(op *models.PendingOperation)
	log    *logrus.Entry
}

// New creates an Orchestrator for chainID. account identifies the
// orchestrator's fund custody in asset transfers; funds credits inbound
// bundled transfers to that account.
func New(chainID uint32, account common.Address, v *vault.Vault, r *registry.Registry, transport Transport, swap SwapRouter, funds FundsGateway, pendingTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		chainID:     chainID,
		account:     account,
		vault:       v,
		registry:    r,
		transport:   transport,
		swap:        swap,
		funds:       funds,
		feeBalance:  big.NewInt(0),
		pendingTTL:  pendingTTL,
		pending:     make(map[string]*models.PendingOperation),
		processed:   make(map[string]struct{}),
		allocations: make(map[allocationKey]*allocationState),
		log:         logrus.WithFields(logrus.Fields{"component": "orchestrator", "chain_id": chainID}),
	}
}

// SetStore wires the optional persistence sink
func (o *Orchestrator) SetStore(store OperationStore) {
	o.store = store
}

// SetPushFunc wires the status push hook invoked on every pending
// operation transition
func (o *Orchestrator) SetPushFunc(fn func(op *models.PendingOperation)) {
	o.pushFn = fn
}

// ChainID the chain this instance runs for
func (o *Orchestrator) ChainID() uint32 {
	return o.chainID
}

// Account the orchestrator fund account
func (o *Orchestrator) Account() common.Address {
	return o.account
}

// CreditFees tops up the native fee balance used to pay transport quotes
func (o *Orchestrator) CreditFees(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	o.feeBalance.Add(o.feeBalance, amount)
	o.log.WithField("balance", o.feeBalance.String()).Info("Fee balance credited")
}

// FeeBalance current native fee balance
func (o *Orchestrator) FeeBalance() *big.Int {
	return new(big.Int).Set(o.feeBalance)
}

// Invest pulls pctBps of each selected ledger's available liquidity and
// places it into the strategy. Local strategies execute synchronously;
// remote strategies produce one DepositRequest message per asset and a
// Pending operation each. The returned deposit id groups the operations
// of one invest call and is assigned optimistically: remote legs are not
// yet confirmed when Invest returns.
func (o *Orchestrator) Invest(ctx context.Context, poolID, strategyID string, tokenIDs []uint32, pctBps []int64, targetAsset common.Address) (string, error) {
	if err := o.busy.Enter(); err != nil {
		return "", err
	}
	defer o.busy.Exit()

	if len(tokenIDs) == 0 {
		return "", ErrNoAssets
	}
	if len(tokenIDs) != len(pctBps) {
		return "", ErrLengthMismatch
	}
	for _, bps := range pctBps {
		if bps <= 0 || bps > utils.BpsDenominator {
			return "", ErrInvalidBps
		}
	}

	strategy, err := o.registry.ActiveStrategy(strategyID)
	if err != nil {
		return "", err
	}

	depositID := uuid.New().String()
	local := strategy.ChainID == o.chainID

	for i, tokenID := range tokenIDs {
		liquidity, err := o.vault.AvailableLiquidity(tokenID)
		if err != nil {
			return depositID, err
		}
		amount := utils.ApplyBps(liquidity, pctBps[i])
		if amount.Sign() == 0 {
			continue
		}
		asset, err := o.vault.AssetOf(tokenID)
		if err != nil {
			return depositID, err
		}

		if err := o.vault.AllocateToStrategy(ctx, tokenID, amount, o.account); err != nil {
			return depositID, err
		}

		if local {
			err = o.investLocal(ctx, strategy, asset, amount, targetAsset)
		} else {
			err = o.investRemote(ctx, strategy, poolID, depositID, asset, amount)
		}
		if err != nil {
			// Undo this asset's pull; legs already dispatched stay in
			// flight as their own correlated operations.
			if undoErr := o.vault.ReturnFromStrategy(ctx, tokenID, amount, big.NewInt(0), o.account); undoErr != nil {
				o.log.WithError(undoErr).WithField("token_id", tokenID).Error("Failed to undo allocation after invest failure")
			}
			return depositID, err
		}
	}

	o.log.WithFields(logrus.Fields{
		"deposit_id":  depositID,
		"strategy_id": strategyID,
		"pool_id":     poolID,
		"local":       local,
	}).Info("Invest dispatched")
	return depositID, nil
}

func (o *Orchestrator) investLocal(ctx context.Context, strategy *registry.StrategyInfo, asset common.Address, amount *big.Int, targetAsset common.Address) error {
	adapter, err := o.registry.AdapterFor(strategy.ID)
	if err != nil {
		return err
	}

	deposited := amount
	depositAsset := asset
	if targetAsset != (common.Address{}) && targetAsset != asset {
		swapped, err := o.swap.Swap(ctx, asset, targetAsset, amount)
		if err != nil {
			return fmt.Errorf("swap to target asset failed: %w", err)
		}
		deposited = swapped
		depositAsset = targetAsset
	}

	if err := adapter.Deposit(ctx, depositAsset, deposited); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteExecution, err)
	}

	// Local execution is synchronous: the allocation record is final as
	// soon as the adapter accepts the deposit.
	o.applyAllocationDelta(ctx, strategy.ID, asset, amount, amount)
	if err := o.registry.AddAllocated(ctx, strategy.ID, amount); err != nil {
		return err
	}
	metrics.OperationsStarted.WithLabelValues(string(models.OperationDepositRequest), "local").Inc()
	return nil
}

func (o *Orchestrator) investRemote(ctx context.Context, strategy *registry.StrategyInfo, poolID, depositID string, asset common.Address, amount *big.Int) error {
	msg := &models.CrossChainMessage{
		Type:          models.OperationDepositRequest,
		SourceChainID: o.chainID,
		DestChainID:   strategy.ChainID,
		StrategyID:    strategy.ID,
		PoolID:        poolID,
		Asset:         asset.Hex(),
		Amount:        amount.String(),
		Transfer:      &models.BundledTransfer{Asset: asset.Hex(), Amount: amount.String()},
	}

	messageID, err := o.sendPaid(strategy.ChainID, msg)
	if err != nil {
		return err
	}

	o.recordPending(ctx, &models.PendingOperation{
		MessageID:     messageID,
		Type:          models.OperationDepositRequest,
		SourceChainID: o.chainID,
		DestChainID:   strategy.ChainID,
		StrategyID:    strategy.ID,
		Asset:         asset.Hex(),
		Amount:        amount.String(),
		PoolID:        poolID,
		DepositID:     depositID,
		Status:        models.OperationStatusPending,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(o.pendingTTL),
	})
	metrics.OperationsStarted.WithLabelValues(string(models.OperationDepositRequest), "remote").Inc()
	return nil
}

// Harvest realizes yield for the strategy on each given asset. Local
// strategies credit the allocation record immediately; remote strategies
// get one HarvestRequest each, whose proceeds return through the
// withdraw-confirmation path. Returns the message ids of remote requests.
func (o *Orchestrator) Harvest(ctx context.Context, strategyID string, assets []common.Address) ([]string, error) {
	if err := o.busy.Enter(); err != nil {
		return nil, err
	}
	defer o.busy.Exit()

	if len(assets) == 0 {
		return nil, ErrNoAssets
	}
	strategy, err := o.registry.ActiveStrategy(strategyID)
	if err != nil {
		return nil, err
	}

	if strategy.ChainID == o.chainID {
		adapter, err := o.registry.AdapterFor(strategyID)
		if err != nil {
			return nil, err
		}
		for _, asset := range assets {
			yield, err := adapter.Harvest(ctx, asset)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRemoteExecution, err)
			}
			o.applyAllocationDelta(ctx, strategyID, asset, big.NewInt(0), yield)
			metrics.OperationsStarted.WithLabelValues(string(models.OperationHarvestRequest), "local").Inc()
		}
		return nil, nil
	}

	messageIDs := make([]string, 0, len(assets))
	for _, asset := range assets {
		msg := &models.CrossChainMessage{
			Type:          models.OperationHarvestRequest,
			SourceChainID: o.chainID,
			DestChainID:   strategy.ChainID,
			StrategyID:    strategyID,
			Asset:         asset.Hex(),
		}
		messageID, err := o.sendPaid(strategy.ChainID, msg)
		if err != nil {
			return messageIDs, err
		}
		o.recordPending(ctx, &models.PendingOperation{
			MessageID:     messageID,
			Type:          models.OperationHarvestRequest,
			SourceChainID: o.chainID,
			DestChainID:   strategy.ChainID,
			StrategyID:    strategyID,
			Asset:         asset.Hex(),
			Amount:        "0",
			Status:        models.OperationStatusPending,
			CreatedAt:     time.Now(),
			ExpiresAt:     time.Now().Add(o.pendingTTL),
		})
		messageIDs = append(messageIDs, messageID)
		metrics.OperationsStarted.WithLabelValues(string(models.OperationHarvestRequest), "remote").Inc()
	}
	return messageIDs, nil
}

// Withdraw pulls amount of asset back from the strategy into the vault.
// Local strategies settle synchronously; remote strategies get a
// WithdrawRequest whose WithdrawConfirmation later carries the funds.
// Returns the message id for the remote path, empty for local.
func (o *Orchestrator) Withdraw(ctx context.Context, strategyID string, asset common.Address, amount *big.Int, poolID string) (string, error) {
	if err := o.busy.Enter(); err != nil {
		return "", err
	}
	defer o.busy.Exit()

	if amount == nil || amount.Sign() <= 0 {
		return "", vault.ErrInvalidAmount
	}
	strategy, err := o.registry.Strategy(strategyID)
	if err != nil {
		return "", err
	}

	if strategy.ChainID == o.chainID {
		if err := o.withdrawLocal(ctx, strategyID, asset, amount); err != nil {
			return "", err
		}
		metrics.OperationsStarted.WithLabelValues(string(models.OperationWithdrawRequest), "local").Inc()
		return "", nil
	}

	msg := &models.CrossChainMessage{
		Type:          models.OperationWithdrawRequest,
		SourceChainID: o.chainID,
		DestChainID:   strategy.ChainID,
		StrategyID:    strategyID,
		PoolID:        poolID,
		Asset:         asset.Hex(),
		Amount:        amount.String(),
	}
	messageID, err := o.sendPaid(strategy.ChainID, msg)
	if err != nil {
		return "", err
	}
	o.recordPending(ctx, &models.PendingOperation{
		MessageID:     messageID,
		Type:          models.OperationWithdrawRequest,
		SourceChainID: o.chainID,
		DestChainID:   strategy.ChainID,
		StrategyID:    strategyID,
		Asset:         asset.Hex(),
		Amount:        amount.String(),
		PoolID:        poolID,
		Status:        models.OperationStatusPending,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(o.pendingTTL),
	})
	metrics.OperationsStarted.WithLabelValues(string(models.OperationWithdrawRequest), "remote").Inc()
	return messageID, nil
}

func (o *Orchestrator) withdrawLocal(ctx context.Context, strategyID string, asset common.Address, amount *big.Int) error {
	adapter, err := o.registry.AdapterFor(strategyID)
	if err != nil {
		return err
	}
	actual, err := adapter.Withdraw(ctx, asset, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteExecution, err)
	}

	principal := utils.MinBig(new(big.Int).Set(amount), new(big.Int).Set(actual))
	yield := new(big.Int).Sub(actual, principal)

	tokenID, ok := o.vault.TokenIDByAsset(asset)
	if !ok {
		return vault.ErrUnknownToken
	}
	if err := o.vault.ReturnFromStrategy(ctx, tokenID, principal, yield, o.account); err != nil {
		return err
	}

	o.applyAllocationDelta(ctx, strategyID, asset, new(big.Int).Neg(principal), new(big.Int).Neg(actual))
	return o.registry.AddAllocated(ctx, strategyID, new(big.Int).Neg(principal))
}

// sendPaid quotes the transport fee, debits the fee balance and sends
func (o *Orchestrator) sendPaid(destChainID uint32, msg *models.CrossChainMessage) (string, error) {
	fee, err := o.transport.GetFee(destChainID, msg)
	if err != nil {
		return "", fmt.Errorf("fee quote failed: %w", err)
	}
	if o.feeBalance.Cmp(fee) < 0 {
		return "", ErrInsufficientFeeBalance
	}

	msg.SentAt = time.Now()
	messageID, err := o.transport.Send(destChainID, msg)
	if err != nil {
		return "", fmt.Errorf("transport send failed: %w", err)
	}

	o.feeBalance.Sub(o.feeBalance, fee)
	feeFloat, _ := new(big.Float).SetInt(fee).Float64()
	metrics.TransportFeesPaid.Add(feeFloat)
	return messageID, nil
}
