package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoroutine_AwaitResumesWithTimerResult exercises the Await adapter
// named in spec §9 Design Notes, wrapping a WaitableTimer completion
// instead of an async I/O operation. Await parks the worker it is called
// on, so a second worker is run to fire the timer and deliver the resume.
func TestCoroutine_AwaitResumesWithTimerResult(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx)
	co := NewCoroutine(strand)

	resultCh := make(chan SystemError, 1)
	ctx.Post(OperationFunc(func(*ThreadIoContext) {
		timer := NewWaitableTimer(ctx)
		_, err := Await(co, func(resume func(struct{}, SystemError)) {
			timer.SetWait(Now().Add(5*time.Millisecond), func(err SystemError) {
				resume(struct{}{}, err)
			})
		})
		resultCh <- err
	}))

	for i := 0; i < 2; i++ {
		go ctx.Run()
	}
	defer ctx.Stop()

	select {
	case err := <-resultCh:
		assert.True(t, err.IsSuccess())
	case <-time.After(2 * time.Second):
		t.Fatal("Await never resumed")
	}
}

// TestCoroutine_AwaitSerializesAgainstStrand runs two coroutines whose
// resumes are both routed through one shared Strand and checks that each
// of them resumes and finishes exactly once.
func TestCoroutine_AwaitSerializesAgainstStrand(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx)
	co := NewCoroutine(strand)

	var order []int
	done := make(chan struct{}, 2)

	run := func(id int, delay time.Duration) {
		ctx.Post(OperationFunc(func(*ThreadIoContext) {
			timer := NewWaitableTimer(ctx)
			_, _ = Await(co, func(resume func(int, SystemError)) {
				timer.SetWait(Now().Add(delay), func(err SystemError) {
					resume(id, err)
				})
			})
			order = append(order, id)
			done <- struct{}{}
		}))
	}

	run(1, 20*time.Millisecond)
	run(2, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		go ctx.Run()
	}
	defer ctx.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("coroutine never completed")
		}
	}
	assert.Len(t, order, 2)
}
