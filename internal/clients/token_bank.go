package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBank an in-process asset balance keeper implementing the vault's
// transfer collaborator. Pull moves funds from an external account into
// vault custody; Push pays out of custody. Used in single-process
// deployments and test harnesses; a production deployment swaps in an
// on-chain transfer agent behind the same interface.
type TokenBank struct {
	mu       sync.Mutex
	custody  common.Address
	balances map[common.Address]map[common.Address]*big.Int // asset -> account -> balance
}

// NewTokenBank creates a bank whose custody account receives pulled funds
func NewTokenBank(custody common.Address) *TokenBank {
	return &TokenBank{
		custody:  custody,
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (b *TokenBank) Mint(asset, account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(asset, account, amount)
}

// Credit materializes an inbound bridged transfer into account. Called
// on message delivery for bundled funds; the minted balance is what the
// vault later pulls when the funds are returned.
func (b *TokenBank) Credit(ctx context.Context, asset, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(asset, account, amount)
	return nil
}

// Balance current balance of account in asset
func (b *TokenBank) Balance(asset, account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if accounts, ok := b.balances[asset]; ok {
		if balance, ok := accounts[account]; ok {
			return new(big.Int).Set(balance)
		}
	}
	return big.NewInt(0)
}

// Pull moves amount of asset from the given account into custody
func (b *TokenBank) Pull(ctx context.Context, asset common.Address, from common.Address, amount *big.Int) error {
	return b.move(asset, from, b.custody, amount)
}

// Push pays amount of asset out of custody to the given account
func (b *TokenBank) Push(ctx context.Context, asset common.Address, to common.Address, amount *big.Int) error {
	return b.move(asset, b.custody, to, amount)
}

func (b *TokenBank) move(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	accounts, ok := b.balances[asset]
	if !ok {
		return fmt.Errorf("account %s holds no %s", from.Hex(), asset.Hex())
	}
	balance, ok := accounts[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance on %s", asset.Hex(), from.Hex())
	}

	balance.Sub(balance, amount)
	b.credit(asset, to, amount)
	return nil
}

func (b *TokenBank) credit(asset, account common.Address, amount *big.Int) {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b.balances[asset] = accounts
	}
	if balance, ok := accounts[account]; ok {
		balance.Add(balance, amount)
		return
	}
	accounts[account] = new(big.Int).Set(amount)
}
