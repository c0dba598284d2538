package proactor

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestSignalSet_AsyncWaitDeliversSignal is spec end-to-end scenario #4:
// raising a signal in the set completes a pending AsyncWait with that
// signal's number.
func TestSignalSet_AsyncWaitDeliversSignal(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	set, err := NewSignalSet(ctx, unix.SIGUSR1)
	require.NoError(t, err)
	defer set.Close()

	resultCh := make(chan struct {
		sig int
		err SystemError
	}, 1)
	set.AsyncWait(func(sig int, err SystemError) {
		resultCh <- struct {
			sig int
			err SystemError
		}{sig, err}
	})

	go ctx.Run()
	defer ctx.Stop()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case r := <-resultCh:
		require.True(t, r.err.IsSuccess())
		assert.Equal(t, int(unix.SIGUSR1), r.sig)
	case <-time.After(2 * time.Second):
		t.Fatal("signal wait never completed")
	}
}

// TestSignalSet_CancelCompletesWithCanceled confirms an outstanding
// AsyncWait is reachable by cancellation like any other pending operation
// (spec I2).
func TestSignalSet_CancelCompletesWithCanceled(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	set, err := NewSignalSet(ctx, unix.SIGUSR2)
	require.NoError(t, err)
	defer set.Close()

	resultCh := make(chan SystemError, 1)
	set.AsyncWait(func(_ int, err SystemError) { resultCh <- err })

	go ctx.Run()
	defer ctx.Stop()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, set.Cancel())

	select {
	case err := <-resultCh:
		require.ErrorIs(t, err, ErrOperationCanceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled signal wait never completed")
	}
}
