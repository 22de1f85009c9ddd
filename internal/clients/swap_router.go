package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// StaticSwapRouter converts between local assets at configured rates.
// Rates are quoted as output units per input unit; unconfigured pairs
// fail rather than default to 1:1.
type StaticSwapRouter struct {
	mu    sync.RWMutex
	rates map[swapPair]decimal.Decimal
}

type swapPair struct {
	from common.Address
	to   common.Address
}

// NewStaticSwapRouter creates an empty swap router
func NewStaticSwapRouter() *StaticSwapRouter {
	return &StaticSwapRouter{
		rates: make(map[swapPair]decimal.Decimal),
	}
}

// SetRate configures the from→to conversion rate and its reciprocal
func (r *StaticSwapRouter) SetRate(from, to common.Address, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("swap rate must be positive, got %s", rate)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[swapPair{from: from, to: to}] = rate
	r.rates[swapPair{from: to, to: from}] = decimal.NewFromInt(1).Div(rate)
	return nil
}

// Swap converts amount of from into to at the configured rate, rounding
// down. Same-asset swaps are the identity.
func (r *StaticSwapRouter) Swap(ctx context.Context, from, to common.Address, amount *big.Int) (*big.Int, error) {
	if from == to {
		return new(big.Int).Set(amount), nil
	}

	r.mu.RLock()
	rate, ok := r.rates[swapPair{from: from, to: to}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no swap rate configured for %s -> %s", from.Hex(), to.Hex())
	}

	in := decimal.NewFromBigInt(amount, 0)
	out := in.Mul(rate).Floor()
	return out.BigInt(), nil
}
