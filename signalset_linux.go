// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

//go:build linux

package proactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// SignalSet delivers a chosen set of Unix signals through the reactor
// instead of Go's default signal.Notify channel (spec §4.8), backed on
// Linux by signalfd — the signals are blocked with pthread_sigmask so
// they never interrupt an arbitrary goroutine, then read as structured
// events from an ordinary nonblocking fd that plugs straight into the
// existing read-queue machinery in reactor.go/asyncio.go.
type SignalSet struct {
	ctx  *IoContext
	fd   int
	mask unix.Sigset_t
}

// NewSignalSet blocks the given signals process-wide and creates a
// signalfd registered with ctx's Reactor.
func NewSignalSet(ctx *IoContext, signals ...unix.Signal) (*SignalSet, error) {
	var set unix.Sigset_t
	for _, sig := range signals {
		addSignal(&set, sig)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	if err := ctx.Reactor().RegisterSocket(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &SignalSet{ctx: ctx, fd: fd, mask: set}, nil
}

// addSignal sets bit sig-1 in a Linux sigset_t, mirroring what
// sigaddset(3) does; unix.Sigset_t has no exported setter.
func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	bit := uint(sig) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
}

// AsyncWait waits for the next signal in the set to be delivered and
// invokes handler exactly once with its number (spec §4.8 async_wait).
func (s *SignalSet) AsyncWait(handler SignalHandler) {
	buf := make([]byte, unix.SizeofSignalfdSiginfo)
	startRetryLoop(s.ctx, s.fd, true,
		func() (int, SystemError) {
			n, err := unix.Read(s.fd, buf)
			return n, FromError(err)
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			var sig int
			if err.IsSuccess() && n == len(buf) {
				info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
				sig = int(info.Signo)
			}
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(sig, err) }))
		})
}

// Cancel cancels any outstanding AsyncWait, completing it with
// ErrOperationCanceled.
func (s *SignalSet) Cancel() error {
	tc := &ThreadIoContext{ctx: s.ctx}
	err := s.ctx.Reactor().CancelOps(s.fd, tc)
	s.ctx.absorb(tc)
	return err
}

// Close deregisters and closes the signalfd. It does not unblock the
// signals process-wide; callers that want the default disposition back
// should call unix.PthreadSigmask(unix.SIG_UNBLOCK, ...) themselves.
func (s *SignalSet) Close() error {
	tc := &ThreadIoContext{ctx: s.ctx}
	_ = s.ctx.Reactor().DeregisterSocket(s.fd, tc)
	s.ctx.absorb(tc)
	return unix.Close(s.fd)
}
