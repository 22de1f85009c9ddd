package adapters

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simAsset = common.HexToAddress("0x0000000000000000000000000000000000aA0001")

func TestSimulated_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(500)

	require.NoError(t, sim.Deposit(ctx, simAsset, big.NewInt(1000)))
	held, err := sim.Balance(ctx, simAsset)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), held)

	// Withdrawals are capped at the held principal.
	out, err := sim.Withdraw(ctx, simAsset, big.NewInt(1500))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), out)

	held, err = sim.Balance(ctx, simAsset)
	require.NoError(t, err)
	assert.Zero(t, held.Sign())
}

func TestSimulated_HarvestPaysFixedRate(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(500)
	require.NoError(t, sim.Deposit(ctx, simAsset, big.NewInt(1000)))

	yield, err := sim.Harvest(ctx, simAsset)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), yield)

	// Harvest pays out of band; the held principal is untouched.
	held, err := sim.Balance(ctx, simAsset)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), held)

	// An empty position harvests zero.
	yield, err = sim.Harvest(ctx, common.HexToAddress("0x0000000000000000000000000000000000aA0009"))
	require.NoError(t, err)
	assert.Zero(t, yield.Sign())
}

func TestSimulated_RejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(500)

	assert.ErrorIs(t, sim.Deposit(ctx, simAsset, big.NewInt(0)), ErrAdapterRejected)
	assert.ErrorIs(t, sim.Deposit(ctx, simAsset, nil), ErrAdapterRejected)

	_, err := sim.Withdraw(ctx, simAsset, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrAdapterRejected)
}
