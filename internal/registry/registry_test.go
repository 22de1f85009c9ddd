package registry

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainvault-backend/internal/adapters"
	"chainvault-backend/internal/models"
)

func TestRegistry_LocalChainAlwaysSupported(t *testing.T) {
	r := New(1, "alpha")
	assert.True(t, r.IsChainSupported(1))
	assert.False(t, r.IsChainSupported(2))

	require.NoError(t, r.AddSupportedChain(context.Background(), 2, "beta"))
	assert.True(t, r.IsChainSupported(2))

	chains := r.SupportedChains()
	require.Len(t, chains, 2)
	assert.Equal(t, uint32(1), chains[0].ChainID)
	assert.Equal(t, "beta", chains[1].Name)
}

func TestRegistry_RegisterStrategyRequiresSupportedChain(t *testing.T) {
	ctx := context.Background()
	r := New(1, "alpha")

	_, err := r.RegisterStrategy(ctx, "lender", 7, "simulated", "")
	assert.ErrorIs(t, err, ErrChainNotSupported)

	info, err := r.RegisterStrategy(ctx, "lender", 1, "simulated", "0xabc")
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.True(t, info.Active)
	assert.Zero(t, info.TotalAllocated.Sign())

	// Same name on the same chain is a duplicate; another chain is not.
	_, err = r.RegisterStrategy(ctx, "lender", 1, "simulated", "")
	assert.ErrorIs(t, err, ErrStrategyExists)

	require.NoError(t, r.AddSupportedChain(ctx, 2, "beta"))
	_, err = r.RegisterStrategy(ctx, "lender", 2, "simulated", "")
	assert.NoError(t, err)
	assert.Len(t, r.Strategies(), 2)
}

func TestRegistry_ActiveFlagGatesResolution(t *testing.T) {
	ctx := context.Background()
	r := New(1, "alpha")
	info, err := r.RegisterStrategy(ctx, "lender", 1, "simulated", "")
	require.NoError(t, err)

	require.NoError(t, r.SetStrategyActive(ctx, info.ID, false))

	// Plain lookup still works, the active-gated one refuses.
	_, err = r.Strategy(info.ID)
	assert.NoError(t, err)
	_, err = r.ActiveStrategy(info.ID)
	assert.ErrorIs(t, err, ErrStrategyInactive)

	require.NoError(t, r.SetStrategyActive(ctx, info.ID, true))
	_, err = r.ActiveStrategy(info.ID)
	assert.NoError(t, err)

	err = r.SetStrategyActive(ctx, "no-such-id", true)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegistry_AdapterResolution(t *testing.T) {
	ctx := context.Background()
	r := New(1, "alpha")
	info, err := r.RegisterStrategy(ctx, "lender", 1, "simulated", "")
	require.NoError(t, err)

	_, err = r.AdapterFor(info.ID)
	assert.ErrorIs(t, err, ErrNoAdapter)

	sim := adapters.NewSimulated(500)
	r.BindAdapter("simulated", sim)

	adapter, err := r.AdapterFor(info.ID)
	require.NoError(t, err)
	assert.Same(t, adapters.StrategyAdapter(sim), adapter)

	_, err = r.AdapterFor("no-such-id")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegistry_AddAllocatedFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	r := New(1, "alpha")
	info, err := r.RegisterStrategy(ctx, "lender", 1, "simulated", "")
	require.NoError(t, err)

	require.NoError(t, r.AddAllocated(ctx, info.ID, big.NewInt(500)))
	require.NoError(t, r.AddAllocated(ctx, info.ID, big.NewInt(-200)))

	got, err := r.Strategy(info.ID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), got.TotalAllocated)

	// Releasing more than is outstanding clamps instead of going negative.
	require.NoError(t, r.AddAllocated(ctx, info.ID, big.NewInt(-1000)))
	got, err = r.Strategy(info.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalAllocated.Sign())
}

func TestRegistry_CloneProtectsInternalState(t *testing.T) {
	ctx := context.Background()
	r := New(1, "alpha")
	info, err := r.RegisterStrategy(ctx, "lender", 1, "simulated", "")
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into the registry.
	info.TotalAllocated.SetInt64(999)
	got, err := r.Strategy(info.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalAllocated.Sign())
}

func TestRegistry_RestoreRebuildsState(t *testing.T) {
	r := New(1, "alpha")
	require.NoError(t, r.Restore(
		[]models.SupportedChain{{ChainID: 2, Name: "beta"}},
		[]models.Strategy{{
			ID:             "s-1",
			Name:           "lender",
			ChainID:        2,
			AdapterKind:    "simulated",
			TotalAllocated: "750",
			IsActive:       true,
			LastUpdateTime: time.Now(),
		}},
	))

	assert.True(t, r.IsChainSupported(2))
	info, err := r.ActiveStrategy("s-1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(750), info.TotalAllocated)
	assert.Equal(t, uint32(2), info.ChainID)
}
