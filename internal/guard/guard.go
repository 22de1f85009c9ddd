// Package guard provides the reentrancy discipline shared by the vault and
// the orchestrator: a single busy flag acquired on entry of every mutating
// operation and released on every exit path.
package guard

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall nested or concurrent entry into a guarded engine
var ErrReentrantCall = errors.New("reentrant call rejected")

// Busy single-owner busy flag. The engines this protects are sequential
// actors: one externally triggered call runs to completion or is fully
// reverted, so contention is rejected rather than queued.
type Busy struct {
	flag atomic.Bool
}

// Enter acquires the flag or fails with ErrReentrantCall
func (b *Busy) Enter() error {
	if !b.flag.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the flag. Call via defer so release happens on every
// exit path, including early errors.
func (b *Busy) Exit() {
	b.flag.Store(false)
}
