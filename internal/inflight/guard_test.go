package inflight

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rental-checkout/internal/apperr"
)

func TestGuard_RejectsSecondCallUntilReleased(t *testing.T) {
	g := NewGuard()
	release, err := g.Acquire("tab-1", Book)
	require.NoError(t, err)
	assert.True(t, g.Busy("tab-1", Book))

	_, err = g.Acquire("tab-1", Book)
	assert.ErrorIs(t, err, apperr.ErrInFlight)

	// other actions and other tabs are independent
	r2, err := g.Acquire("tab-1", Pay)
	require.NoError(t, err)
	r2()
	r3, err := g.Acquire("tab-2", Book)
	require.NoError(t, err)
	r3()

	release()
	release()
	assert.False(t, g.Busy("tab-1", Book))
	r4, err := g.Acquire("tab-1", Book)
	require.NoError(t, err)
	r4()
}

func TestGuard_ConcurrentAcquireOnlyOneWins(t *testing.T) {
	g := NewGuard()
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("tab-1", Estimate); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
