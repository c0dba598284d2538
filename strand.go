// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

package proactor

import "sync"

// Strand serializes a group of operations against an IoContext that may
// have several workers running concurrently (spec §4.7): at most one
// operation posted or dispatched through a given Strand runs at a time,
// regardless of how many workers are otherwise free. Grounded on the
// teacher's mutex-guarded exclusion sections (promise.go's State
// transitions, loop.go's externalMu/internalQueueMu pattern of "lock,
// mutate a slice, unlock, then act"), adapted from "protect a data
// structure" to "serialize a sequence of closures".
type Strand struct {
	ctx     *IoContext
	mu      sync.Mutex
	queue   []Operation
	running bool
}

// NewStrand creates a Strand bound to ctx; operations posted or
// dispatched through it run on ctx's workers like any other Operation,
// just never concurrently with each other.
func NewStrand(ctx *IoContext) *Strand {
	return &Strand{ctx: ctx}
}

// Post enqueues op for strand-exclusive execution and never runs it
// inline, even if the strand is currently idle — spec §4.7 post(). If the
// strand was idle, a single drain task is posted to the underlying
// IoContext to process the queue.
func (s *Strand) Post(op Operation) {
	s.mu.Lock()
	s.queue = append(s.queue, op)
	alreadyDraining := s.running
	s.running = true
	s.mu.Unlock()

	if !alreadyDraining {
		s.ctx.Post(OperationFunc(s.drain))
	}
}

// Dispatch runs op immediately, inline, if the strand is currently idle
// (acquiring exclusive running status first); otherwise it enqueues op
// behind whatever is already draining — spec §4.7 dispatch(). This is the
// fast path a handler completing inside its own strand relies on to avoid
// an extra trip through the ready queue.
func (s *Strand) Dispatch(tc *ThreadIoContext, op Operation) {
	s.mu.Lock()
	if !s.running {
		s.running = true
		s.mu.Unlock()
		op.Call(tc)
		s.drain(tc)
		return
	}
	s.queue = append(s.queue, op)
	s.mu.Unlock()
}

// drain runs queued operations one at a time until the queue empties,
// then releases "running" — the lock/queue-if-locked/invoke/drain loop
// spec §4.7 describes. Both Post's posted drain task and Dispatch's
// inline fast path converge here.
func (s *Strand) drain(tc *ThreadIoContext) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		op.Call(tc)
	}
}

// Wrap returns an Operation that, when Called, dispatches op through the
// strand rather than running it directly — used to hand a strand-affine
// continuation to code that only understands plain Operations (e.g. as a
// completion handler registered with an async I/O state machine).
func (s *Strand) Wrap(op Operation) Operation {
	return OperationFunc(func(tc *ThreadIoContext) {
		s.Dispatch(tc, op)
	})
}
