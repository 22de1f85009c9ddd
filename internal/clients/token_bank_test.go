package clients

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bankAsset   = common.HexToAddress("0x0000000000000000000000000000000000aA0001")
	bankCustody = common.HexToAddress("0x00000000000000000000000000000000000Cc001")
	alice       = common.HexToAddress("0x0000000000000000000000000000000000001111")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000002222")
)

func TestTokenBank_PullAndPush(t *testing.T) {
	ctx := context.Background()
	bank := NewTokenBank(bankCustody)
	bank.Mint(bankAsset, alice, big.NewInt(1000))

	require.NoError(t, bank.Pull(ctx, bankAsset, alice, big.NewInt(600)))
	assert.Equal(t, big.NewInt(400), bank.Balance(bankAsset, alice))
	assert.Equal(t, big.NewInt(600), bank.Balance(bankAsset, bankCustody))

	require.NoError(t, bank.Push(ctx, bankAsset, bob, big.NewInt(250)))
	assert.Equal(t, big.NewInt(350), bank.Balance(bankAsset, bankCustody))
	assert.Equal(t, big.NewInt(250), bank.Balance(bankAsset, bob))
}

func TestTokenBank_RejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	bank := NewTokenBank(bankCustody)
	bank.Mint(bankAsset, alice, big.NewInt(100))

	err := bank.Pull(ctx, bankAsset, alice, big.NewInt(101))
	require.Error(t, err)
	assert.Equal(t, big.NewInt(100), bank.Balance(bankAsset, alice))

	// Custody holds nothing yet, so payouts fail too.
	err = bank.Push(ctx, bankAsset, bob, big.NewInt(1))
	require.Error(t, err)
	assert.Zero(t, bank.Balance(bankAsset, bob).Sign())
}

func TestTokenBank_ZeroAmountIsNoop(t *testing.T) {
	ctx := context.Background()
	bank := NewTokenBank(bankCustody)

	assert.NoError(t, bank.Pull(ctx, bankAsset, alice, big.NewInt(0)))
	assert.Error(t, bank.Pull(ctx, bankAsset, alice, nil))
	assert.Error(t, bank.Pull(ctx, bankAsset, alice, big.NewInt(-1)))
}

func TestStaticSwapRouter_ConvertsAtConfiguredRate(t *testing.T) {
	ctx := context.Background()
	router := NewStaticSwapRouter()
	from := common.HexToAddress("0x0000000000000000000000000000000000aA0001")
	to := common.HexToAddress("0x0000000000000000000000000000000000aA0002")

	_, err := router.Swap(ctx, from, to, big.NewInt(100))
	assert.Error(t, err, "unconfigured pair must not default to 1:1")

	require.NoError(t, router.SetRate(from, to, decimal.RequireFromString("0.5")))

	out, err := router.Swap(ctx, from, to, big.NewInt(101))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), out, "conversion rounds down")

	// The reciprocal direction is configured automatically.
	out, err = router.Swap(ctx, to, from, big.NewInt(50))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), out)

	// Same-asset swaps are the identity without configuration.
	out, err = router.Swap(ctx, from, from, big.NewInt(77))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(77), out)
}

func TestStaticSwapRouter_RejectsNonPositiveRate(t *testing.T) {
	router := NewStaticSwapRouter()
	a := common.HexToAddress("0x0000000000000000000000000000000000aA0001")
	b := common.HexToAddress("0x0000000000000000000000000000000000aA0002")

	assert.Error(t, router.SetRate(a, b, decimal.Zero))
	assert.Error(t, router.SetRate(a, b, decimal.NewFromInt(-1)))
}
