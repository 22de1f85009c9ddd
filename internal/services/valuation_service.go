package services

import (
	"context"

	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PriceSource quotes USD prices for assets
type PriceSource interface {
	GetPriceUSD(ctx context.Context, asset string) (decimal.Decimal, error)
}

// LedgerValuation human-readable view of one asset ledger
type LedgerValuation struct {
	TokenID        uint32          `json:"token_id"`
	Asset          string          `json:"asset"`
	Name           string          `json:"name"`
	TotalPooled    string          `json:"total_pooled"`
	AllocatedOut   string          `json:"allocated_out"`
	YieldEarned    string          `json:"yield_earned"`
	SharePrice     decimal.Decimal `json:"share_price"`
	PriceUSD       decimal.Decimal `json:"price_usd"`
	TotalValueUSD  decimal.Decimal `json:"total_value_usd"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
}

// ValuationService derives decimal reporting views over the vault's
// integer ledgers. Prices are advisory; a dead oracle degrades the USD
// columns to zero without failing the view.
type ValuationService struct {
	vault  *vault.Vault
	prices PriceSource
}

// NewValuationService creates a new ValuationService
func NewValuationService(v *vault.Vault, prices PriceSource) *ValuationService {
	return &ValuationService{vault: v, prices: prices}
}

// LedgerValuations builds the reporting view for every ledger
func (s *ValuationService) LedgerValuations(ctx context.Context) []LedgerValuation {
	views := s.vault.Ledgers()
	out := make([]LedgerValuation, 0, len(views))
	for _, lv := range views {
		out = append(out, s.valuate(ctx, lv))
	}
	return out
}

// LedgerValuation builds the reporting view for one ledger
func (s *ValuationService) LedgerValuation(ctx context.Context, tokenID uint32) (*LedgerValuation, error) {
	lv, err := s.vault.Ledger(tokenID)
	if err != nil {
		return nil, err
	}
	valuation := s.valuate(ctx, lv)
	return &valuation, nil
}

// HolderValueUSD the USD value of one holder's claim on a ledger
func (s *ValuationService) HolderValueUSD(ctx context.Context, tokenID uint32, holder common.Address) (decimal.Decimal, error) {
	value, err := s.vault.UserAssetValue(tokenID, holder)
	if err != nil {
		return decimal.Zero, err
	}
	asset, err := s.vault.AssetOf(tokenID)
	if err != nil {
		return decimal.Zero, err
	}
	price := s.priceOrZero(ctx, asset.Hex())
	return decimal.NewFromBigInt(value, 0).Mul(price), nil
}

func (s *ValuationService) valuate(ctx context.Context, lv *vault.LedgerView) LedgerValuation {
	sharePrice := decimal.Zero
	if raw, err := s.vault.ShareValue(lv.TokenID); err == nil {
		sharePrice = decimal.NewFromBigInt(raw, -18)
	}

	price := s.priceOrZero(ctx, lv.Asset.Hex())
	pooled := decimal.NewFromBigInt(lv.TotalPooled, 0)
	allocated := decimal.NewFromBigInt(lv.AllocatedOut, 0)

	utilization := decimal.Zero
	if pooled.IsPositive() {
		utilization = allocated.Div(pooled).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return LedgerValuation{
		TokenID:        lv.TokenID,
		Asset:          lv.Asset.Hex(),
		Name:           lv.Name,
		TotalPooled:    lv.TotalPooled.String(),
		AllocatedOut:   lv.AllocatedOut.String(),
		YieldEarned:    lv.YieldEarned.String(),
		SharePrice:     sharePrice,
		PriceUSD:       price,
		TotalValueUSD:  pooled.Mul(price),
		UtilizationPct: utilization,
	}
}

func (s *ValuationService) priceOrZero(ctx context.Context, asset string) decimal.Decimal {
	if s.prices == nil {
		return decimal.Zero
	}
	price, err := s.prices.GetPriceUSD(ctx, asset)
	if err != nil {
		logrus.WithError(err).WithField("asset", asset).Debug("Price lookup failed, valuing at zero")
		return decimal.Zero
	}
	return price
}
