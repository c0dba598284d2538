package proactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_WaitReceivesCompletion(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	f, complete := NewFuture[int]()
	ctx.Post(OperationFunc(func(*ThreadIoContext) { complete(42, Success) }))

	go ctx.Run()
	defer ctx.Stop()

	v, sysErr, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, sysErr.IsSuccess())
	assert.Equal(t, 42, v)
}

func TestFuture_WaitReturnsOnContextCancel(t *testing.T) {
	f, _ := NewFuture[int]()

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := f.Wait(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_CompleteTwicePanics(t *testing.T) {
	_, complete := NewFuture[int]()
	complete(1, Success)
	assert.Panics(t, func() { complete(2, Success) })
}

func TestFuture_ToChannelDeliversOneValue(t *testing.T) {
	f, complete := NewFuture[string]()
	complete("done", Success)

	select {
	case r := <-f.ToChannel():
		assert.Equal(t, "done", r.Value)
		assert.True(t, r.Err.IsSuccess())
	default:
		t.Fatal("ToChannel should have the settled result buffered")
	}
}
