// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

// Operation is a heap-allocated unit of work (spec §3). It is owned
// uniquely while it sits on a queue (a reactor Ops queue, the IoContext
// ready-queue, or a worker's ThreadIoContext scratch list) and is
// transferred by simple Go value/pointer passing rather than an explicit
// "move" — the discipline is enforced by convention: once an Operation is
// handed to Post/Dispatch/add_read_op/add_write_op, the caller must not
// retain or resubmit the same value concurrently.
//
// Call is invoked exactly once, when the operation reaches the front of a
// worker's execution: either because it was posted directly (plain tasks,
// timer firings, strand-queued closures) or because a ReadinessOperation's
// Perform chose to complete and pushed a completion wrapper onto the
// worker's ThreadIoContext ready list, from which it reaches the shared
// ready queue.
type Operation interface {
	Call(tc *ThreadIoContext)
}

// ReadinessOperation is an Operation that can also be dispatched directly
// by the Reactor when a registered handle becomes ready or is canceled.
// Perform corresponds to spec §3's "perform(thread_ctx, err)" entry point;
// Call corresponds to "call(thread_ctx)".
//
// err is SystemError's zero value (success) on ordinary readiness,
// ErrOperationCanceled (wrapped) when the queue the operation was sitting
// on has been canceled (spec §4.3 cancel_ops_nolock / spec I2), and the
// handle's SO_ERROR (or ErrConnectionAborted when that reads 0) when the
// kernel reported an error or hangup on the handle.
type ReadinessOperation interface {
	Operation
	Perform(tc *ThreadIoContext, err SystemError)
}

// OperationFunc adapts a plain function to Operation, the way the teacher's
// loop.go represents a scheduled unit of work as Task{Runnable func()}.
// Used for Post/Dispatch of plain callbacks that have no readiness
// component (user code, strand-queued continuations, timer completions).
type OperationFunc func(tc *ThreadIoContext)

// Call implements Operation.
func (f OperationFunc) Call(tc *ThreadIoContext) { f(tc) }

// readinessOperationFunc adapts a pair of functions to ReadinessOperation;
// used internally by the async I/O state machines (asyncio.go) and by the
// Darwin SignalSet (signalset_darwin.go), which need a ReadinessOperation
// but have no other state to hang methods off.
type readinessOperationFunc struct {
	call    func(tc *ThreadIoContext)
	perform func(tc *ThreadIoContext, err SystemError)
}

func (f readinessOperationFunc) Call(tc *ThreadIoContext) { f.call(tc) }
func (f readinessOperationFunc) Perform(tc *ThreadIoContext, err SystemError) {
	f.perform(tc, err)
}
