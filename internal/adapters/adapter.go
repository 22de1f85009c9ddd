// Package adapters defines the strategy adapter contract. One concrete
// implementation exists per integrated yield source; the orchestrator
// selects an implementation through the registry by strategy id.
package adapters

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAdapterRejected the yield source declined the operation
var ErrAdapterRejected = errors.New("strategy adapter rejected operation")

// StrategyAdapter external yield-generating integration. Implementations
// wrap a single yield source on the chain the adapter runs on.
type StrategyAdapter interface {
	// Deposit places amount of asset into the yield source
	Deposit(ctx context.Context, asset common.Address, amount *big.Int) error
	// Withdraw pulls up to amount of asset back out; the returned value is
	// the amount actually received, which may exceed the request when the
	// position accrued yield
	Withdraw(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error)
	// Harvest realizes accrued yield for asset without touching principal
	Harvest(ctx context.Context, asset common.Address) (*big.Int, error)
	// Balance reports the current position value for asset
	Balance(ctx context.Context, asset common.Address) (*big.Int, error)
}
