// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

// Coroutine is the "coroutine" handler variant named in spec §6 and framed
// as an adapter in spec §9 Design Notes: "specify as an adapter that wraps
// a handler so that its completion resumes a suspended stack; the
// adapter's correctness reduces to strand exclusion". This is deliberately
// not a stackful-coroutine runtime (explicitly a Non-goal) — it parks the
// calling goroutine on a channel and resumes it by posting the completion
// through a Strand. Only that resume hand-off runs inside the Strand: the
// code after Await returns runs on the awaiting goroutine outside the
// Strand, so two coroutines that have both resumed can run concurrently.
type Coroutine struct {
	strand *Strand
}

// NewCoroutine binds a Coroutine adapter to strand; every Await against it
// delivers its result through that strand, so the resume hand-offs of
// coroutines sharing one Coroutine value never run concurrently with each
// other or with any other work posted to the same strand.
func NewCoroutine(strand *Strand) *Coroutine { return &Coroutine{strand: strand} }

// Await suspends the calling goroutine until start's completion fires.
// start is invoked immediately (synchronously, on the calling goroutine)
// and is expected to arrange for resume to be called exactly once, from
// any goroutine, once the underlying operation completes — the same
// contract an AsyncRead/AsyncWrite/WaitableTimer completion handler
// satisfies. The resumption itself is routed through the Coroutine's
// Strand before the parked goroutine is woken, so the hand-off is
// serialized against every other task sharing that strand; the caller's
// code after Await returns is not. Await blocks its goroutine: called from
// inside an IoContext worker, it holds that worker until resumed, so
// another worker must be running to deliver the completion.
func Await[R any](co *Coroutine, start func(resume func(R, SystemError))) (R, SystemError) {
	woken := make(chan FutureResult[R], 1)
	start(func(v R, err SystemError) {
		co.strand.Post(OperationFunc(func(*ThreadIoContext) {
			woken <- FutureResult[R]{Value: v, Err: err}
		}))
	})
	r := <-woken
	return r.Value, r.Err
}
