// Package vault implements the share-based multi-asset ledger manager.
// Each supported asset gets one ledger tracking pooled funds, outstanding
// strategy allocations and total issued shares. Yield enters exclusively
// through ReturnFromStrategy, raising the share price for every holder
// pro-rata; there is no per-holder yield bookkeeping.
package vault

import (
	"context"
	"math/big"
	"time"

	"chainvault-backend/internal/guard"
	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// SharePriceScale fixed-point scale for ShareValue views
var SharePriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// AssetTransferrer moves asset balances between the vault, depositors and
// the orchestrator. External collaborator; the vault never assumes success.
type AssetTransferrer interface {
	Pull(ctx context.Context, asset common.Address, from common.Address, amount *big.Int) error
	Push(ctx context.Context, asset common.Address, to common.Address, amount *big.Int) error
}

// LedgerStore persists ledger and position rows for querying and restart
// reconciliation. The in-memory engine remains authoritative.
type LedgerStore interface {
	SaveLedger(ctx context.Context, ledger *models.AssetLedger) error
	SavePosition(ctx context.Context, position *models.Position) error
}

type positionKey struct {
	tokenID uint32
	holder  common.Address
}

type ledgerState struct {
	tokenID      uint32
	asset        common.Address
	name         string
	totalPooled  *big.Int
	allocatedOut *big.Int
	totalShares  *big.Int
	yieldEarned  *big.Int
	active       bool
	lastUpdate   time.Time
}

// LedgerView read-only snapshot of one asset ledger
type LedgerView struct {
	TokenID      uint32
	Asset        common.Address
	Name         string
	TotalPooled  *big.Int
	AllocatedOut *big.Int
	TotalShares  *big.Int
	YieldEarned  *big.Int
	Active       bool
	LastUpdate   time.Time
}

// Vault the ledger manager. All mutating entry points acquire the busy
// guard on entry; nested entry during an outbound transfer is rejected.
type Vault struct {
	busy guard.Busy

	maxAllocationBps int64
	minShares        *big.Int

	ledgers     map[uint32]*ledgerState
	byAsset     map[common.Address]uint32
	positions   map[positionKey]*big.Int
	nextTokenID uint32

	transfer AssetTransferrer
	store    LedgerStore // optional
	log      *logrus.Entry
}

// New creates a Vault with the given allocation ceiling (bps of totalPooled)
// and first-deposit minimum-shares floor
func New(transfer AssetTransferrer, maxAllocationBps int64, minShares *big.Int) *Vault {
	if minShares == nil {
		minShares = big.NewInt(0)
	}
	return &Vault{
		maxAllocationBps: maxAllocationBps,
		minShares:        new(big.Int).Set(minShares),
		ledgers:          make(map[uint32]*ledgerState),
		byAsset:          make(map[common.Address]uint32),
		positions:        make(map[positionKey]*big.Int),
		nextTokenID:      1,
		transfer:         transfer,
		log:              logrus.WithField("component", "vault"),
	}
}

// SetStore wires the optional persistence sink
func (v *Vault) SetStore(store LedgerStore) {
	v.store = store
}

// AddAsset registers a new empty ledger and returns its token id.
// Fails if the asset is already supported.
func (v *Vault) AddAsset(ctx context.Context, asset common.Address, name string) (uint32, error) {
	if err := v.busy.Enter(); err != nil {
		return 0, err
	}
	defer v.busy.Exit()

	if _, exists := v.byAsset[asset]; exists {
		return 0, ErrAssetAlreadyExists
	}

	tokenID := v.nextTokenID
	v.nextTokenID++

	ls := &ledgerState{
		tokenID:      tokenID,
		asset:        asset,
		name:         name,
		totalPooled:  big.NewInt(0),
		allocatedOut: big.NewInt(0),
		totalShares:  big.NewInt(0),
		yieldEarned:  big.NewInt(0),
		active:       true,
		lastUpdate:   time.Now(),
	}
	v.ledgers[tokenID] = ls
	v.byAsset[asset] = tokenID

	v.persistLedger(ctx, ls)
	v.log.WithFields(logrus.Fields{
		"token_id": tokenID,
		"asset":    asset.Hex(),
		"name":     name,
	}).Info("Asset ledger registered")
	return tokenID, nil
}

// Deposit pulls amount from depositor and credits proportional shares to
// receiver. The very first deposit of a ledger issues
// max(amount, minShares) shares and must itself be at least minShares,
// blunting share-price manipulation via a dust first deposit.
func (v *Vault) Deposit(ctx context.Context, tokenID uint32, amount *big.Int, depositor, receiver common.Address) (*big.Int, error) {
	if err := v.busy.Enter(); err != nil {
		return nil, err
	}
	defer v.busy.Exit()

	ls, err := v.activeLedger(tokenID)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// Share computation on the pre-state; all rounding floors.
	var shares *big.Int
	if ls.totalShares.Sign() == 0 {
		if amount.Cmp(v.minShares) < 0 {
			return nil, ErrMinimumShares
		}
		shares = utils.MaxBig(new(big.Int).Set(amount), new(big.Int).Set(v.minShares))
	} else {
		shares = utils.MulDivFloor(amount, ls.totalShares, ls.totalPooled)
		if shares.Cmp(v.minShares) < 0 {
			return nil, ErrMinimumShares
		}
	}

	// Funds are pulled before any ledger mutation, so a failed transfer
	// leaves no partial state.
	if err := v.transfer.Pull(ctx, ls.asset, depositor, amount); err != nil {
		return nil, err
	}

	ls.totalPooled.Add(ls.totalPooled, amount)
	ls.totalShares.Add(ls.totalShares, shares)
	ls.lastUpdate = time.Now()
	v.creditShares(tokenID, receiver, shares)

	v.persistLedger(ctx, ls)
	v.persistPosition(ctx, tokenID, receiver)
	metrics.VaultDeposits.WithLabelValues(tokenIDLabel(tokenID)).Inc()
	v.updateLedgerGauges(ls)

	v.log.WithFields(logrus.Fields{
		"token_id": tokenID,
		"amount":   amount.String(),
		"shares":   shares.String(),
		"receiver": receiver.Hex(),
	}).Info("Deposit credited")
	return shares, nil
}

// Withdraw burns shares held by holder and transfers the proportional
// amount, accrued yield folded in, to receiver
func (v *Vault) Withdraw(ctx context.Context, tokenID uint32, shares *big.Int, holder, receiver common.Address) (*big.Int, error) {
	if err := v.busy.Enter(); err != nil {
		return nil, err
	}
	defer v.busy.Exit()

	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	held := v.shareBalance(tokenID, holder)
	if held.Cmp(shares) < 0 {
		return nil, ErrInsufficientBalance
	}

	amount := utils.MulDivFloor(shares, ls.totalPooled, ls.totalShares)
	liquidity := new(big.Int).Sub(ls.totalPooled, ls.allocatedOut)
	if amount.Cmp(liquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	// Burn first, then shrink the pool, then transfer out.
	v.debitShares(tokenID, holder, shares)
	ls.totalPooled.Sub(ls.totalPooled, amount)
	ls.totalShares.Sub(ls.totalShares, shares)
	ls.lastUpdate = time.Now()

	if err := v.transfer.Push(ctx, ls.asset, receiver, amount); err != nil {
		// Revert the burn; the transfer moved nothing.
		v.creditShares(tokenID, holder, shares)
		ls.totalPooled.Add(ls.totalPooled, amount)
		ls.totalShares.Add(ls.totalShares, shares)
		return nil, err
	}

	v.persistLedger(ctx, ls)
	v.persistPosition(ctx, tokenID, holder)
	metrics.VaultWithdrawals.WithLabelValues(tokenIDLabel(tokenID)).Inc()
	v.updateLedgerGauges(ls)

	v.log.WithFields(logrus.Fields{
		"token_id": tokenID,
		"shares":   shares.String(),
		"amount":   amount.String(),
		"holder":   holder.Hex(),
	}).Info("Withdrawal paid out")
	return amount, nil
}

// AllocateToStrategy transfers amount to the orchestrator account and
// increments allocatedOut. Orchestrator-restricted.
func (v *Vault) AllocateToStrategy(ctx context.Context, tokenID uint32, amount *big.Int, orchestrator common.Address) error {
	if err := v.busy.Enter(); err != nil {
		return err
	}
	defer v.busy.Exit()

	ls, err := v.activeLedger(tokenID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	liquidity := new(big.Int).Sub(ls.totalPooled, ls.allocatedOut)
	if amount.Cmp(liquidity) > 0 {
		return ErrInsufficientLiquidity
	}

	ceiling := utils.ApplyBps(ls.totalPooled, v.maxAllocationBps)
	next := new(big.Int).Add(ls.allocatedOut, amount)
	if next.Cmp(ceiling) > 0 {
		return ErrAllocationLimit
	}

	if err := v.transfer.Push(ctx, ls.asset, orchestrator, amount); err != nil {
		return err
	}

	ls.allocatedOut.Set(next)
	ls.lastUpdate = time.Now()
	v.persistLedger(ctx, ls)
	v.updateLedgerGauges(ls)

	v.log.WithFields(logrus.Fields{
		"token_id":      tokenID,
		"amount":        amount.String(),
		"allocated_out": ls.allocatedOut.String(),
	}).Info("Funds allocated to strategy")
	return nil
}

// ReturnFromStrategy pulls principal+yield back into the vault.
// Principal is capped at the outstanding allocatedOut, defending against
// over-reporting by a misbehaving caller. Yield raises totalPooled and
// therefore the share price of every holder. Orchestrator-restricted.
func (v *Vault) ReturnFromStrategy(ctx context.Context, tokenID uint32, principal, yield *big.Int, orchestrator common.Address) error {
	if err := v.busy.Enter(); err != nil {
		return err
	}
	defer v.busy.Exit()

	ls, err := v.ledger(tokenID)
	if err != nil {
		return err
	}
	if principal == nil {
		principal = big.NewInt(0)
	}
	if yield == nil {
		yield = big.NewInt(0)
	}
	if principal.Sign() < 0 || yield.Sign() < 0 {
		return ErrInvalidAmount
	}

	credited := utils.MinBig(principal, ls.allocatedOut)
	total := new(big.Int).Add(credited, yield)
	if total.Sign() > 0 {
		if err := v.transfer.Pull(ctx, ls.asset, orchestrator, total); err != nil {
			return err
		}
	}

	ls.allocatedOut.Sub(ls.allocatedOut, credited)
	ls.totalPooled.Add(ls.totalPooled, yield)
	ls.yieldEarned.Add(ls.yieldEarned, yield)
	ls.lastUpdate = time.Now()

	v.persistLedger(ctx, ls)
	v.updateLedgerGauges(ls)

	v.log.WithFields(logrus.Fields{
		"token_id":  tokenID,
		"principal": credited.String(),
		"yield":     yield.String(),
	}).Info("Funds returned from strategy")
	return nil
}

// ============================================================================
// Views
// ============================================================================

// ShareValue current share price scaled by SharePriceScale.
// An empty ledger prices at exactly 1.0.
func (v *Vault) ShareValue(tokenID uint32) (*big.Int, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	if ls.totalShares.Sign() == 0 {
		return new(big.Int).Set(SharePriceScale), nil
	}
	return utils.MulDivFloor(ls.totalPooled, SharePriceScale, ls.totalShares), nil
}

// AvailableLiquidity totalPooled - allocatedOut
func (v *Vault) AvailableLiquidity(tokenID uint32) (*big.Int, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(ls.totalPooled, ls.allocatedOut), nil
}

// UserAssetValue holder's proportional claim, yield folded in
func (v *Vault) UserAssetValue(tokenID uint32, holder common.Address) (*big.Int, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	if ls.totalShares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return utils.MulDivFloor(v.shareBalance(tokenID, holder), ls.totalPooled, ls.totalShares), nil
}

// SharesOf holder's share balance
func (v *Vault) SharesOf(tokenID uint32, holder common.Address) *big.Int {
	return v.shareBalance(tokenID, holder)
}

// AssetOf resolves the asset behind a token id
func (v *Vault) AssetOf(tokenID uint32) (common.Address, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return ls.asset, nil
}

// TokenIDByAsset reverse lookup
func (v *Vault) TokenIDByAsset(asset common.Address) (uint32, bool) {
	id, ok := v.byAsset[asset]
	return id, ok
}

// Ledger read-only snapshot of one ledger
func (v *Vault) Ledger(tokenID uint32) (*LedgerView, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	return snapshot(ls), nil
}

// Ledgers snapshots of every registered ledger
func (v *Vault) Ledgers() []*LedgerView {
	out := make([]*LedgerView, 0, len(v.ledgers))
	for id := uint32(1); id < v.nextTokenID; id++ {
		if ls, ok := v.ledgers[id]; ok {
			out = append(out, snapshot(ls))
		}
	}
	return out
}

// Restore reloads engine state from persisted rows at boot. Must be
// called before the vault serves traffic.
func (v *Vault) Restore(ledgers []models.AssetLedger, positions []models.Position) error {
	for i := range ledgers {
		row := &ledgers[i]
		totalPooled, err := utils.ParseAmount(row.TotalPooled)
		if err != nil {
			return err
		}
		allocatedOut, err := utils.ParseAmount(row.AllocatedOut)
		if err != nil {
			return err
		}
		totalShares, err := utils.ParseAmount(row.TotalShares)
		if err != nil {
			return err
		}
		yieldEarned, err := utils.ParseAmount(row.YieldEarned)
		if err != nil {
			return err
		}
		asset := common.HexToAddress(row.Asset)
		ls := &ledgerState{
			tokenID:      row.TokenID,
			asset:        asset,
			name:         row.Name,
			totalPooled:  totalPooled,
			allocatedOut: allocatedOut,
			totalShares:  totalShares,
			yieldEarned:  yieldEarned,
			active:       row.IsActive,
			lastUpdate:   row.LastUpdateTime,
		}
		v.ledgers[row.TokenID] = ls
		v.byAsset[asset] = row.TokenID
		if row.TokenID >= v.nextTokenID {
			v.nextTokenID = row.TokenID + 1
		}
		v.updateLedgerGauges(ls)
	}
	for i := range positions {
		row := &positions[i]
		shares, err := utils.ParseAmount(row.Shares)
		if err != nil {
			return err
		}
		v.positions[positionKey{tokenID: row.TokenID, holder: common.HexToAddress(row.Holder)}] = shares
	}
	v.log.WithFields(logrus.Fields{
		"ledgers":   len(ledgers),
		"positions": len(positions),
	}).Info("Vault state restored")
	return nil
}

// ============================================================================
// Internals
// ============================================================================

func (v *Vault) ledger(tokenID uint32) (*ledgerState, error) {
	ls, ok := v.ledgers[tokenID]
	if !ok {
		return nil, ErrUnknownToken
	}
	return ls, nil
}

func (v *Vault) activeLedger(tokenID uint32) (*ledgerState, error) {
	ls, err := v.ledger(tokenID)
	if err != nil {
		return nil, err
	}
	if !ls.active {
		return nil, ErrLedgerInactive
	}
	return ls, nil
}

func (v *Vault) shareBalance(tokenID uint32, holder common.Address) *big.Int {
	if shares, ok := v.positions[positionKey{tokenID: tokenID, holder: holder}]; ok {
		return new(big.Int).Set(shares)
	}
	return big.NewInt(0)
}

func (v *Vault) creditShares(tokenID uint32, holder common.Address, shares *big.Int) {
	key := positionKey{tokenID: tokenID, holder: holder}
	if existing, ok := v.positions[key]; ok {
		existing.Add(existing, shares)
		return
	}
	v.positions[key] = new(big.Int).Set(shares)
}

func (v *Vault) debitShares(tokenID uint32, holder common.Address, shares *big.Int) {
	key := positionKey{tokenID: tokenID, holder: holder}
	if existing, ok := v.positions[key]; ok {
		existing.Sub(existing, shares)
	}
}

func (v *Vault) persistLedger(ctx context.Context, ls *ledgerState) {
	if v.store == nil {
		return
	}
	row := &models.AssetLedger{
		TokenID:        ls.tokenID,
		Asset:          ls.asset.Hex(),
		Name:           ls.name,
		TotalPooled:    ls.totalPooled.String(),
		AllocatedOut:   ls.allocatedOut.String(),
		TotalShares:    ls.totalShares.String(),
		YieldEarned:    ls.yieldEarned.String(),
		IsActive:       ls.active,
		LastUpdateTime: ls.lastUpdate,
	}
	if err := v.store.SaveLedger(ctx, row); err != nil {
		v.log.WithError(err).WithField("token_id", ls.tokenID).Warn("Failed to persist ledger row")
	}
}

func (v *Vault) persistPosition(ctx context.Context, tokenID uint32, holder common.Address) {
	if v.store == nil {
		return
	}
	row := &models.Position{
		TokenID: tokenID,
		Holder:  holder.Hex(),
		Shares:  v.shareBalance(tokenID, holder).String(),
	}
	if err := v.store.SavePosition(ctx, row); err != nil {
		v.log.WithError(err).WithFields(logrus.Fields{
			"token_id": tokenID,
			"holder":   holder.Hex(),
		}).Warn("Failed to persist position row")
	}
}

func (v *Vault) updateLedgerGauges(ls *ledgerState) {
	label := tokenIDLabel(ls.tokenID)
	pooled, _ := new(big.Float).SetInt(ls.totalPooled).Float64()
	allocated, _ := new(big.Float).SetInt(ls.allocatedOut).Float64()
	metrics.VaultTotalPooled.WithLabelValues(label, ls.asset.Hex()).Set(pooled)
	metrics.VaultAllocatedOut.WithLabelValues(label, ls.asset.Hex()).Set(allocated)
}

func tokenIDLabel(tokenID uint32) string {
	return new(big.Int).SetUint64(uint64(tokenID)).String()
}

func snapshot(ls *ledgerState) *LedgerView {
	return &LedgerView{
		TokenID:      ls.tokenID,
		Asset:        ls.asset,
		Name:         ls.name,
		TotalPooled:  new(big.Int).Set(ls.totalPooled),
		AllocatedOut: new(big.Int).Set(ls.allocatedOut),
		TotalShares:  new(big.Int).Set(ls.totalShares),
		YieldEarned:  new(big.Int).Set(ls.yieldEarned),
		Active:       ls.active,
		LastUpdate:   ls.lastUpdate,
	}
}
