package proactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoContext_RunOneProcessesPostedOp(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	var ran bool
	ctx.Post(OperationFunc(func(*ThreadIoContext) { ran = true }))

	n, err := ctx.RunOne()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, ran)
}

// TestIoContext_RunReturnsWhenWorkExhausted is spec property P5:
// outstanding_work == 0 and at least one worker running and not stopped
// implies Run returns.
func TestIoContext_RunReturnsWhenWorkExhausted(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	var count int32
	for i := 0; i < 50; i++ {
		ctx.Post(OperationFunc(func(*ThreadIoContext) { atomic.AddInt32(&count, 1) }))
	}

	done := make(chan struct{})
	var n int
	go func() {
		n, _ = ctx.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return once outstanding work reached zero")
	}
	assert.Equal(t, 50, n)
	assert.Equal(t, int32(50), atomic.LoadInt32(&count))
}

// TestIoContext_StopInterruptsBlockedWorker is spec scenario #5: a worker
// blocked in Poll with only a far-future timer armed returns promptly once
// Stop is called from another goroutine.
func TestIoContext_StopInterruptsBlockedWorker(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	timer := NewWaitableTimer(ctx)
	timer.SetWait(Now().Add(60*time.Second), func(SystemError) {})

	done := make(chan struct{})
	go func() {
		ctx.Run()
		close(done)
	}()

	// Give the worker a moment to actually enter Poll.
	time.Sleep(20 * time.Millisecond)
	ctx.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop() did not wake the blocked worker within 500ms")
	}
}

func TestIoContext_PostAfterStopDoesNotDispatch(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	ctx.Stop()

	var ran bool
	ctx.Post(OperationFunc(func(*ThreadIoContext) { ran = true }))

	n, err := ctx.RunOne()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, ran, "a stopped context must not dispatch newly posted work")

	require.NoError(t, ctx.Restart())

	n, err = ctx.RunOne()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, ran, "Restart then Run/RunOne processes work queued while stopped")
}

func TestIoContext_RestartRejectedWhileWorkerActive(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	// Keep a worker "active" by never letting Run() return: arm a
	// long-lived timer so outstanding work never reaches zero.
	timer := NewWaitableTimer(ctx)
	timer.SetWait(Now().Add(time.Hour), func(SystemError) {})

	runDone := make(chan struct{})
	go func() {
		ctx.Run()
		close(runDone)
	}()
	time.Sleep(20 * time.Millisecond)

	err = ctx.Restart()
	assert.ErrorIs(t, err, ErrContextRunning)

	ctx.Stop()
	<-runDone
}

func TestIoContext_DispatchRunsInlineOnOwnWorker(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	tc := &ThreadIoContext{ctx: ctx}
	var ran bool
	ctx.Dispatch(tc, OperationFunc(func(*ThreadIoContext) { ran = true }))
	assert.True(t, ran, "Dispatch from a tc belonging to this context runs inline")
}

func TestIoContext_DispatchPostsWhenNotOnWorker(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	var ran bool
	ctx.Dispatch(nil, OperationFunc(func(*ThreadIoContext) { ran = true }))
	assert.False(t, ran, "Dispatch with no owning tc behaves like Post, not inline")

	n, err := ctx.RunOne()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, ran)
}
