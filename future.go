// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import (
	"context"
	"sync/atomic"
)

// FutureResult pairs a completion value with the SystemError the operation
// completed with, the payload a Future delivers over its channel.
type FutureResult[R any] struct {
	Value R
	Err   SystemError
}

// Future is the "future/promise style" handler variant named in spec §6:
// a one-shot channel a caller can block on, rather than a callback run
// inline or via a strand. Grounded on the teacher's promise.go Result/
// ToChannel idea, stripped of ChainedPromise's Then/Catch/Finally
// combinators, All/Race/AllSettled/Any aggregation and the weak-reference
// rejection-tracking registry — none of which spec §6 asks for; this
// package only needs the single-consumer, single-result channel shape.
type Future[R any] struct {
	c       chan FutureResult[R]
	settled atomic.Bool
}

// NewFuture creates an unresolved Future. The returned completion function
// is the handler to hand to an async operation (AsyncRead, SetWait, …);
// calling it more than once panics, the same single-settlement discipline
// spec I2/§4.1 apply to every other Operation.
func NewFuture[R any]() (*Future[R], func(R, SystemError)) {
	f := &Future[R]{c: make(chan FutureResult[R], 1)}
	return f, f.complete
}

func (f *Future[R]) complete(value R, err SystemError) {
	if !f.settled.CompareAndSwap(false, true) {
		panic("proactor: future completed more than once")
	}
	f.c <- FutureResult[R]{Value: value, Err: err}
}

// ToChannel returns the channel the result is delivered on, mirroring the
// teacher's Promise.ToChannel. The channel receives exactly one value.
func (f *Future[R]) ToChannel() <-chan FutureResult[R] { return f.c }

// Wait blocks until the Future settles or ctx is done, whichever comes
// first. A nil context.Context is not accepted; pass context.Background()
// for an unconditional wait.
func (f *Future[R]) Wait(ctx context.Context) (R, SystemError, error) {
	select {
	case r := <-f.c:
		return r.Value, r.Err, nil
	case <-ctx.Done():
		var zero R
		return zero, Success, ctx.Err()
	}
}
