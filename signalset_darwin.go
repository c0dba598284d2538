// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

//go:build darwin

package proactor

import "golang.org/x/sys/unix"

// SignalSet delivers chosen Unix signals through the reactor (spec
// §4.8), backed on Darwin by EVFILT_SIGNAL: the kernel holds the signal
// pending and reports it as a kqueue event instead of delivering it to a
// goroutine, once the Go runtime's own default disposition is bypassed
// via signal.Notify with a channel nobody reads (done by the caller —
// SignalSet only arms the kqueue filter, it does not touch the process
// signal mask on Darwin, since EVFILT_SIGNAL does not require it the way
// signalfd requires SIG_BLOCK on Linux).
type SignalSet struct {
	ctx           *IoContext
	signals       []int
	lastDelivered int
}

// NewSignalSet arms EVFILT_SIGNAL for each signal on ctx's Reactor.
func NewSignalSet(ctx *IoContext, signals ...unix.Signal) (*SignalSet, error) {
	ss := &SignalSet{ctx: ctx}
	changes := make([]unix.Kevent_t, 0, len(signals))
	for _, sig := range signals {
		ss.signals = append(ss.signals, int(sig))
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(sig), Filter: unix.EVFILT_SIGNAL, Flags: unix.EV_ADD,
		})
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(ctx.Reactor().kq, changes, nil, nil); err != nil {
			return nil, NewSystemError(err.(unix.Errno))
		}
	}
	return ss, nil
}

// AsyncWait registers handler as the next signal-delivery completion for
// every signal number in this set; whichever arrives first fires it and
// the wait on the others is implicitly consumed (spec §4.8's
// single-slot wait contract, same as WaitableTimer.SetWait).
func (s *SignalSet) AsyncWait(handler SignalHandler) {
	s.ctx.workStarted()
	op := readinessOperationFunc{}
	op.perform = func(tc *ThreadIoContext, err SystemError) {
		// Consume the registrations for the set's other signals so this
		// wait completes only once.
		for _, other := range s.signals {
			s.ctx.Reactor().takeSignalOp(other)
		}
		// workFinished is not called here: runOnce decrements once when it
		// pops and runs the completion closure pushed below.
		sig := 0
		if err.IsSuccess() {
			sig = s.lastDelivered
		}
		tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(sig, err) }))
	}
	for _, sig := range s.signals {
		s.ctx.Reactor().registerSignalOp(sig, signalDeliveryOp{s: s, sig: sig, next: op})
	}
}

// signalDeliveryOp records which signal number actually fired before
// forwarding to the shared completion, since AsyncWait arms the same
// handler against every signal number in the set.
type signalDeliveryOp struct {
	s    *SignalSet
	sig  int
	next readinessOperationFunc
}

func (d signalDeliveryOp) Call(tc *ThreadIoContext) { d.next.Call(tc) }
func (d signalDeliveryOp) Perform(tc *ThreadIoContext, err SystemError) {
	d.s.lastDelivered = d.sig
	d.next.Perform(tc, err)
}

// Cancel completes any outstanding AsyncWait with ErrOperationCanceled
// (spec I2: no operation is silently dropped). A no-op if nothing is
// pending.
func (s *SignalSet) Cancel() error {
	canceledErr := NewSystemError(0)
	canceledErr.sentinel = ErrOperationCanceled
	tc := &ThreadIoContext{ctx: s.ctx}
	for _, sig := range s.signals {
		if op, ok := s.ctx.Reactor().takeSignalOp(sig); ok {
			op.Perform(tc, canceledErr)
		}
	}
	s.ctx.absorb(tc)
	return nil
}

// Close removes every EVFILT_SIGNAL filter this set registered.
func (s *SignalSet) Close() error {
	if len(s.signals) == 0 {
		return nil
	}
	changes := make([]unix.Kevent_t, 0, len(s.signals))
	for _, sig := range s.signals {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(sig), Filter: unix.EVFILT_SIGNAL, Flags: unix.EV_DELETE,
		})
	}
	_, err := unix.Kevent(s.ctx.Reactor().kq, changes, nil, nil)
	if err != nil {
		return NewSystemError(err.(unix.Errno))
	}
	return nil
}
