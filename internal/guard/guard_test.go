package guard

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusy_NestedEntryRejected(t *testing.T) {
	var b Busy
	require.NoError(t, b.Enter())
	assert.ErrorIs(t, b.Enter(), ErrReentrantCall)

	b.Exit()
	assert.NoError(t, b.Enter())
	b.Exit()
}

func TestBusy_ConcurrentEntrySingleWinner(t *testing.T) {
	var b Busy
	var wins atomic.Int32
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if b.Enter() == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
