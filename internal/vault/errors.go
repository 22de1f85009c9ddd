package vault

import "errors"

var (
	ErrAssetAlreadyExists    = errors.New("asset already supported")
	ErrUnknownToken          = errors.New("unknown token id")
	ErrLedgerInactive        = errors.New("asset ledger is not active")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrMinimumShares         = errors.New("deposit below minimum shares")
	ErrInsufficientBalance   = errors.New("insufficient share balance")
	ErrInsufficientLiquidity = errors.New("insufficient available liquidity")
	ErrAllocationLimit       = errors.New("allocation limit exceeded")
)
