// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

package proactor

import "sync"

// WaitableTimer is a single-slot wrapper over IoContext's TimerQueue
// (spec §4.5): SetWait arms a new deadline, replacing (and canceling) any
// previously armed wait, and UnsetWait disarms without completing with a
// result at all. This is the type user code reaches for directly;
// TimerQueue itself is the shared ordered collection a whole IoContext
// drains on every poll, not something user code touches one timer at a
// time.
type WaitableTimer struct {
	ctx *IoContext

	mu      sync.Mutex
	handler func(err SystemError)
	pending TimerID
	armed   bool
}

// NewWaitableTimer creates a disarmed WaitableTimer bound to ctx.
func NewWaitableTimer(ctx *IoContext) *WaitableTimer {
	return &WaitableTimer{ctx: ctx}
}

// SetWait arms the timer to expire at expiry, invoking handler with
// Success when it does. If a previous wait was still pending, it is
// canceled first and its handler runs immediately with
// ErrOperationCanceled — spec §4.5's set_wait "replaces the previous
// operation" semantics, and spec I6 "single ownership of timer
// operations": every handler fires exactly once (spec I2: no operation is
// silently dropped). A displaced handler whose wait is still in the timer
// queue fires with ErrOperationCanceled; one whose wait had already
// expired and been moved to the ready queue fires with Success.
func (t *WaitableTimer) SetWait(expiry Expiry, handler func(err SystemError)) {
	t.mu.Lock()
	t.cancelLocked()

	t.ctx.workStarted()
	t.handler = handler
	var id TimerID
	op := OperationFunc(func(tc *ThreadIoContext) {
		t.mu.Lock()
		if t.pending == id {
			t.armed = false
		}
		t.mu.Unlock()
		// workFinished is not called here: runOnce decrements once when it
		// pops and runs this op from readyQ, the sole decrement point for
		// work started above.
		handler(Success)
	})
	var becameEarliest bool
	id, becameEarliest = t.ctx.Timers().Insert(expiry, op)
	t.pending = id
	t.armed = true
	t.mu.Unlock()

	if becameEarliest {
		// A worker may be blocked in Poll past the old earliest deadline;
		// wake it so it recomputes the poll timeout against the new one
		// (spec §9's "only interrupt when the earliest timer actually
		// changed" resolution).
		logTimerEarliestChanged(t.ctx.logger, expiry)
		_ = t.ctx.Reactor().Interrupt()
	}
}

// UnsetWait disarms the timer without invoking the pending handler at
// all — spec §4.5 unset_wait. If no wait is pending this is a no-op.
func (t *WaitableTimer) UnsetWait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return
	}
	if op, _ := t.ctx.Timers().Remove(t.pending); op != nil {
		t.ctx.workFinished()
	}
	t.armed = false
	t.handler = nil
}

// Cancel disarms the timer, invoking the pending handler (if any) with
// ErrOperationCanceled, unlike UnsetWait which drops it silently. SetWait
// calls this internally whenever it displaces a still-pending wait.
func (t *WaitableTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *WaitableTimer) cancelLocked() {
	if !t.armed {
		return
	}
	op, _ := t.ctx.Timers().Remove(t.pending)
	handler := t.handler
	t.armed = false
	t.handler = nil
	if op == nil {
		// Already expired and queued to run: it completes with Success.
		return
	}
	t.ctx.workFinished()
	if handler != nil {
		canceledErr := NewSystemError(0)
		canceledErr.sentinel = ErrOperationCanceled
		handler(canceledErr)
	}
}
