package proactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStrand_Exclusion is spec scenario #3 / property P3: a strand over a
// shared counter, posted many times across several workers, ends up with
// exactly the expected count and never observes concurrent access.
func TestStrand_Exclusion(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx)

	const n = 10000
	var counter int
	var inStrand int32
	var violations int32

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		strand.Post(OperationFunc(func(*ThreadIoContext) {
			if atomic.AddInt32(&inStrand, 1) != 1 {
				atomic.AddInt32(&violations, 1)
			}
			counter++
			atomic.AddInt32(&inStrand, -1)
			wg.Done()
		}))
	}

	for i := 0; i < 4; i++ {
		go ctx.Run()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("strand-wrapped operations never finished")
	}

	ctx.Stop()

	require.Equal(t, int32(0), violations, "strand allowed concurrent execution")
	require.Equal(t, n, counter)
}

// TestStrand_DispatchRunsInlineWhenIdle checks that Dispatch takes the
// fast path (no trip through IoContext.Post) when the strand is idle.
func TestStrand_DispatchRunsInlineWhenIdle(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx)
	tc := &ThreadIoContext{ctx: ctx}

	var ran bool
	strand.Dispatch(tc, OperationFunc(func(*ThreadIoContext) { ran = true }))
	require.True(t, ran, "Dispatch on an idle strand runs inline, synchronously")
}

// TestStrand_WrapPreservesOrder checks that Wrap-wrapped operations invoked
// in order still execute in that order (P3's happens-before guarantee).
func TestStrand_WrapPreservesOrder(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx)
	tc := &ThreadIoContext{ctx: ctx}

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		wrapped := strand.Wrap(OperationFunc(func(*ThreadIoContext) {
			order = append(order, i)
		}))
		wrapped.Call(tc)
	}

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
