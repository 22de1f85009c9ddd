package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainvault-backend/internal/clients"
	"chainvault-backend/internal/models"
)

var (
	testAsset  = common.HexToAddress("0x00000000000000000000000000000000000Aa001")
	custody    = common.HexToAddress("0x00000000000000000000000000000000000Cc001")
	orchAcct   = common.HexToAddress("0x00000000000000000000000000000000000Ee001")
	depositorA = common.HexToAddress("0x0000000000000000000000000000000000001111")
	depositorB = common.HexToAddress("0x0000000000000000000000000000000000002222")
)

func newTestVault(t *testing.T, maxAllocationBps int64, minShares int64) (*Vault, *clients.TokenBank, uint32) {
	t.Helper()
	bank := clients.NewTokenBank(custody)
	v := New(bank, maxAllocationBps, big.NewInt(minShares))
	tokenID, err := v.AddAsset(context.Background(), testAsset, "Test USD")
	require.NoError(t, err)
	return v, bank, tokenID
}

func TestVault_AddAssetRejectsDuplicate(t *testing.T) {
	v, _, tokenID := newTestVault(t, 10000, 0)
	assert.Equal(t, uint32(1), tokenID)

	_, err := v.AddAsset(context.Background(), testAsset, "Test USD again")
	assert.ErrorIs(t, err, ErrAssetAlreadyExists)

	other := common.HexToAddress("0x00000000000000000000000000000000000Aa002")
	next, err := v.AddAsset(context.Background(), other, "Other")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)

	resolved, ok := v.TokenIDByAsset(other)
	require.True(t, ok)
	assert.Equal(t, next, resolved)
}

func TestVault_FirstDepositEnforcesMinimumShares(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 1000)
	bank.Mint(testAsset, depositorA, big.NewInt(5000))

	_, err := v.Deposit(ctx, tokenID, big.NewInt(999), depositorA, depositorA)
	assert.ErrorIs(t, err, ErrMinimumShares)

	shares, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), shares)
	assert.Equal(t, big.NewInt(4000), bank.Balance(testAsset, depositorA))
	assert.Equal(t, big.NewInt(1000), bank.Balance(testAsset, custody))
}

func TestVault_DepositRejectsZeroAndUnknownToken(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(100))

	_, err := v.Deposit(ctx, tokenID, big.NewInt(0), depositorA, depositorA)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = v.Deposit(ctx, 99, big.NewInt(100), depositorA, depositorA)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestVault_DepositFailedPullLeavesNoState(t *testing.T) {
	ctx := context.Background()
	v, _, tokenID := newTestVault(t, 10000, 0)

	// depositorA was never minted anything, so the pull must fail
	_, err := v.Deposit(ctx, tokenID, big.NewInt(500), depositorA, depositorA)
	require.Error(t, err)

	ledger, err := v.Ledger(tokenID)
	require.NoError(t, err)
	assert.Zero(t, ledger.TotalPooled.Sign())
	assert.Zero(t, ledger.TotalShares.Sign())
	assert.Zero(t, v.SharesOf(tokenID, depositorA).Sign())
}

// Yield returned from a strategy raises the share price; a later depositor
// pays the higher price and the earlier depositor exits with the gain.
func TestVault_YieldRaisesSharePrice(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	bank.Mint(testAsset, depositorB, big.NewInt(535))

	sharesA, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), sharesA)

	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(700), orchAcct))
	liquidity, err := v.AvailableLiquidity(tokenID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), liquidity)

	// Allocation alone must not move the price.
	price, err := v.ShareValue(tokenID)
	require.NoError(t, err)
	assert.Equal(t, SharePriceScale, price)

	// Strategy returns principal 700 plus 70 yield.
	bank.Mint(testAsset, orchAcct, big.NewInt(70))
	require.NoError(t, v.ReturnFromStrategy(ctx, tokenID, big.NewInt(700), big.NewInt(70), orchAcct))

	price, err = v.ShareValue(tokenID)
	require.NoError(t, err)
	want := new(big.Int).Div(new(big.Int).Mul(big.NewInt(1070), SharePriceScale), big.NewInt(1000))
	assert.Equal(t, want, price)

	// B buys in at the raised price: floor(535 * 1000 / 1070) = 500 shares.
	sharesB, err := v.Deposit(ctx, tokenID, big.NewInt(535), depositorB, depositorB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), sharesB)

	// A exits with the yield folded in: floor(1000 * 1605 / 1500) = 1070.
	amount, err := v.Withdraw(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1070), amount)
	assert.Equal(t, big.NewInt(1070), bank.Balance(testAsset, depositorA))

	// B's claim is unchanged by A's exit.
	valueB, err := v.UserAssetValue(tokenID, depositorB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(535), valueB)

	ledger, err := v.Ledger(tokenID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), ledger.YieldEarned)
	assert.Equal(t, big.NewInt(535), ledger.TotalPooled)
	assert.Equal(t, big.NewInt(500), ledger.TotalShares)
}

func TestVault_AllocationCeiling(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 8000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	_, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)

	// Ceiling is 80% of pooled = 800; exactly 800 passes, one more fails.
	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(800), orchAcct))
	err = v.AllocateToStrategy(ctx, tokenID, big.NewInt(1), orchAcct)
	assert.ErrorIs(t, err, ErrAllocationLimit)

	ledger, err := v.Ledger(tokenID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(800), ledger.AllocatedOut)
	assert.Equal(t, big.NewInt(800), bank.Balance(testAsset, orchAcct))
}

func TestVault_AllocateRejectsBeyondLiquidity(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	_, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)

	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(900), orchAcct))
	err = v.AllocateToStrategy(ctx, tokenID, big.NewInt(200), orchAcct)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestVault_WithdrawBlockedByAllocatedFunds(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	_, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(700), orchAcct))

	// 1000 shares are worth 1000 but only 300 is liquid.
	_, err = v.Withdraw(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	amount, err := v.Withdraw(ctx, tokenID, big.NewInt(300), depositorA, depositorA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), amount)
}

func TestVault_WithdrawRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(100))
	_, err := v.Deposit(ctx, tokenID, big.NewInt(100), depositorA, depositorA)
	require.NoError(t, err)

	_, err = v.Withdraw(ctx, tokenID, big.NewInt(101), depositorA, depositorA)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

type pushFailBank struct {
	*clients.TokenBank
}

func (b *pushFailBank) Push(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	return errors.New("push rejected")
}

func TestVault_WithdrawRevertsOnFailedTransfer(t *testing.T) {
	ctx := context.Background()
	bank := &pushFailBank{TokenBank: clients.NewTokenBank(custody)}
	v := New(bank, 10000, big.NewInt(0))
	tokenID, err := v.AddAsset(ctx, testAsset, "Test USD")
	require.NoError(t, err)
	bank.Mint(testAsset, depositorA, big.NewInt(500))
	_, err = v.Deposit(ctx, tokenID, big.NewInt(500), depositorA, depositorA)
	require.NoError(t, err)

	_, err = v.Withdraw(ctx, tokenID, big.NewInt(200), depositorA, depositorA)
	require.Error(t, err)

	// Burn and pool shrink are reverted when the payout fails.
	ledger, err := v.Ledger(tokenID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), ledger.TotalPooled)
	assert.Equal(t, big.NewInt(500), ledger.TotalShares)
	assert.Equal(t, big.NewInt(500), v.SharesOf(tokenID, depositorA))
}

func TestVault_ReturnCapsPrincipalAtAllocatedOut(t *testing.T) {
	ctx := context.Background()
	v, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	_, err := v.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(500), orchAcct))

	// Over-reported principal is clipped to the outstanding allocation;
	// only the credited portion is pulled back.
	require.NoError(t, v.ReturnFromStrategy(ctx, tokenID, big.NewInt(600), big.NewInt(0), orchAcct))

	ledger, err := v.Ledger(tokenID)
	require.NoError(t, err)
	assert.Zero(t, ledger.AllocatedOut.Sign())
	assert.Equal(t, big.NewInt(1000), ledger.TotalPooled)
	assert.Zero(t, bank.Balance(testAsset, orchAcct).Sign())
}

func TestVault_ReturnRejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	v, _, tokenID := newTestVault(t, 10000, 0)
	err := v.ReturnFromStrategy(ctx, tokenID, big.NewInt(-1), big.NewInt(0), orchAcct)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVault_EmptyLedgerPricesAtOne(t *testing.T) {
	v, _, tokenID := newTestVault(t, 10000, 0)
	price, err := v.ShareValue(tokenID)
	require.NoError(t, err)
	assert.Equal(t, SharePriceScale, price)

	value, err := v.UserAssetValue(tokenID, depositorA)
	require.NoError(t, err)
	assert.Zero(t, value.Sign())
}

func TestVault_RestoreRebuildsState(t *testing.T) {
	ctx := context.Background()
	src, bank, tokenID := newTestVault(t, 10000, 0)
	bank.Mint(testAsset, depositorA, big.NewInt(1000))
	_, err := src.Deposit(ctx, tokenID, big.NewInt(1000), depositorA, depositorA)
	require.NoError(t, err)
	require.NoError(t, src.AllocateToStrategy(ctx, tokenID, big.NewInt(400), orchAcct))

	view, err := src.Ledger(tokenID)
	require.NoError(t, err)

	restored := New(bank, 10000, big.NewInt(0))
	require.NoError(t, restored.Restore(
		[]models.AssetLedger{{
			TokenID:        view.TokenID,
			Asset:          view.Asset.Hex(),
			Name:           view.Name,
			TotalPooled:    view.TotalPooled.String(),
			AllocatedOut:   view.AllocatedOut.String(),
			TotalShares:    view.TotalShares.String(),
			YieldEarned:    view.YieldEarned.String(),
			IsActive:       view.Active,
			LastUpdateTime: view.LastUpdate,
		}},
		[]models.Position{{TokenID: tokenID, Holder: depositorA.Hex(), Shares: "1000"}},
	))

	liquidity, err := restored.AvailableLiquidity(tokenID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), liquidity)
	assert.Equal(t, big.NewInt(1000), restored.SharesOf(tokenID, depositorA))

	// Restored ids continue the sequence.
	next, err := restored.AddAsset(ctx, common.HexToAddress("0x00000000000000000000000000000000000Aa002"), "Other")
	require.NoError(t, err)
	assert.Equal(t, tokenID+1, next)
}
