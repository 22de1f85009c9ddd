package adapters

import (
	"context"
	"math/big"
	"sync"

	"chainvault-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

// Simulated in-memory yield source. Pays out a fixed rate (bps of held
// principal) on every Harvest. Used for staging environments and tests;
// production deployments bind one adapter per real integration.
type Simulated struct {
	mu           sync.Mutex
	yieldRateBps int64
	held         map[common.Address]*big.Int
}

// NewSimulated creates a Simulated adapter yielding yieldRateBps per harvest
func NewSimulated(yieldRateBps int64) *Simulated {
	return &Simulated{
		yieldRateBps: yieldRateBps,
		held:         make(map[common.Address]*big.Int),
	}
}

// Deposit places amount into the simulated position
func (s *Simulated) Deposit(ctx context.Context, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAdapterRejected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceOf(asset).Add(s.balanceOf(asset), amount)
	return nil
}

// Withdraw pulls up to amount of held principal back out
func (s *Simulated) Withdraw(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAdapterRejected
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.balanceOf(asset)
	principal := utils.MinBig(new(big.Int).Set(amount), new(big.Int).Set(held))
	held.Sub(held, principal)
	return principal, nil
}

// Harvest pays out yieldRateBps of the held principal
func (s *Simulated) Harvest(ctx context.Context, asset common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return utils.ApplyBps(s.balanceOf(asset), s.yieldRateBps), nil
}

// Balance held principal
func (s *Simulated) Balance(ctx context.Context, asset common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balanceOf(asset)), nil
}

func (s *Simulated) balanceOf(asset common.Address) *big.Int {
	if held, ok := s.held[asset]; ok {
		return held
	}
	s.held[asset] = big.NewInt(0)
	return s.held[asset]
}
