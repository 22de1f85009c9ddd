package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainvault-backend/internal/clients"
	"chainvault-backend/internal/vault"
)

type stubPrices struct {
	prices map[string]decimal.Decimal
	err    error
}

func (s *stubPrices) GetPriceUSD(ctx context.Context, asset string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.prices[asset], nil
}

func newValuationFixture(t *testing.T) (*vault.Vault, uint32, common.Address) {
	t.Helper()
	ctx := context.Background()
	asset := common.HexToAddress("0x0000000000000000000000000000000000aA0001")
	custody := common.HexToAddress("0x00000000000000000000000000000000000Cc001")
	holder := common.HexToAddress("0x0000000000000000000000000000000000001111")
	orch := common.HexToAddress("0x00000000000000000000000000000000000Ee001")

	bank := clients.NewTokenBank(custody)
	v := vault.New(bank, 10000, big.NewInt(0))
	tokenID, err := v.AddAsset(ctx, asset, "Test USD")
	require.NoError(t, err)
	bank.Mint(asset, holder, big.NewInt(1000))
	_, err = v.Deposit(ctx, tokenID, big.NewInt(1000), holder, holder)
	require.NoError(t, err)
	require.NoError(t, v.AllocateToStrategy(ctx, tokenID, big.NewInt(250), orch))
	return v, tokenID, asset
}

func TestValuationService_LedgerValuation(t *testing.T) {
	ctx := context.Background()
	v, tokenID, asset := newValuationFixture(t)
	prices := &stubPrices{prices: map[string]decimal.Decimal{
		asset.Hex(): decimal.RequireFromString("1.5"),
	}}
	svc := NewValuationService(v, prices)

	valuation, err := svc.LedgerValuation(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, "1000", valuation.TotalPooled)
	assert.Equal(t, "250", valuation.AllocatedOut)
	assert.True(t, valuation.SharePrice.Equal(decimal.NewFromInt(1)), "got %s", valuation.SharePrice)
	assert.True(t, valuation.TotalValueUSD.Equal(decimal.NewFromInt(1500)), "got %s", valuation.TotalValueUSD)
	assert.True(t, valuation.UtilizationPct.Equal(decimal.NewFromInt(25)), "got %s", valuation.UtilizationPct)

	_, err = svc.LedgerValuation(ctx, 99)
	assert.ErrorIs(t, err, vault.ErrUnknownToken)
}

func TestValuationService_OracleFailureDegradesToZero(t *testing.T) {
	ctx := context.Background()
	v, tokenID, _ := newValuationFixture(t)
	svc := NewValuationService(v, &stubPrices{err: errors.New("oracle down")})

	valuation, err := svc.LedgerValuation(ctx, tokenID)
	require.NoError(t, err)
	assert.True(t, valuation.PriceUSD.IsZero())
	assert.True(t, valuation.TotalValueUSD.IsZero())
	// Integer columns survive a dead oracle.
	assert.Equal(t, "1000", valuation.TotalPooled)
}

func TestValuationService_HolderValueUSD(t *testing.T) {
	ctx := context.Background()
	v, tokenID, asset := newValuationFixture(t)
	holder := common.HexToAddress("0x0000000000000000000000000000000000001111")
	prices := &stubPrices{prices: map[string]decimal.Decimal{
		asset.Hex(): decimal.NewFromInt(2),
	}}
	svc := NewValuationService(v, prices)

	value, err := svc.HolderValueUSD(ctx, tokenID, holder)
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(2000)), "got %s", value)

	// Without a price source the value is advisory zero, not an error.
	bare := NewValuationService(v, nil)
	value, err = bare.HolderValueUSD(ctx, tokenID, holder)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}
