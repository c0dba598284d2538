// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package proactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Reactor owns the readiness multiplexer (spec §4.3): on Darwin, a kqueue
// instance. Grounded on the teacher's FastPoller (poller_darwin.go), with
// the same generalization from "one callback per fd" to "independent
// read/write Ops queues per fd" applied in reactor_linux.go.
type Reactor struct {
	reactorCore
	kq   int
	intr interrupter
}

// NewReactor creates a kqueue-backed Reactor and registers its Interrupter.
func NewReactor() (*Reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	unix.CloseOnExec(kq)
	intr, err := newInterrupter()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	r := &Reactor{reactorCore: newReactorCore(), kq: kq, intr: intr}
	changes := []unix.Kevent_t{
		{Ident: uint64(intr.fd()), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR},
	}
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		_ = intr.close()
		_ = unix.Close(kq)
		return nil, NewSystemError(err.(unix.Errno))
	}
	return r, nil
}

// Interrupt wakes a thread blocked in Poll.
func (r *Reactor) Interrupt() error { return r.intr.interrupt() }

// RegisterSocket registers fd for both read and write readiness using
// EV_CLEAR|EV_DISPATCH — the same "re-arm on every next_*_op" discipline
// epoll's EPOLLET gives on Linux (spec §9 Open Question #3: uniform
// edge-triggered semantics across platforms, no EV_ENABLE special-casing
// in the retry path).
func (r *Reactor) RegisterSocket(fd int) error {
	if _, ok := r.insert(fd); !ok {
		return ErrHandleAlreadyRegistered
	}
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR | unix.EV_DISPATCH},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR | unix.EV_DISPATCH},
	}
	if _, err := unix.Kevent(r.kq, changes, nil, nil); err != nil {
		r.remove(fd)
		return NewSystemError(err.(unix.Errno))
	}
	return nil
}

// DeregisterSocket cancels pending operations on fd and removes its
// kqueue filters.
func (r *Reactor) DeregisterSocket(fd int, tc *ThreadIoContext) error {
	hs, ok := r.remove(fd)
	if !ok {
		return ErrHandleNotRegistered
	}
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(r.kq, changes, nil, nil)
	cancelHandle(hs, tc)
	return nil
}

// AddReadOp enqueues op on fd's read queue.
func (r *Reactor) AddReadOp(fd int, op ReadinessOperation, tc *ThreadIoContext) error {
	return r.addOp(fd, op, tc, true)
}

// AddWriteOp enqueues op on fd's write queue.
func (r *Reactor) AddWriteOp(fd int, op ReadinessOperation, tc *ThreadIoContext) error {
	return r.addOp(fd, op, tc, false)
}

func (r *Reactor) addOp(fd int, op ReadinessOperation, tc *ThreadIoContext, read bool) error {
	hs, err := r.lookup(fd)
	if err != nil {
		return err
	}
	q := &hs.writeOps
	if read {
		q = &hs.readOps
	}
	tryNow, canceled := q.add(op)
	if canceled {
		canceledErr := NewSystemError(0)
		canceledErr.sentinel = ErrOperationCanceled
		op.Perform(tc, canceledErr)
		return nil
	}
	if tryNow {
		op.Perform(tc, Success)
	}
	return nil
}

// ReleaseReadOp tells fd's read queue that its inflight operation has
// genuinely completed (as opposed to retrying after EAGAIN), promoting
// the next queued operation, if any, into its place. When it returns
// tryNow == true the caller must invoke next.Perform(tc, Success)
// immediately, exactly as it would for a freshly submitted operation on
// an idle queue.
func (r *Reactor) ReleaseReadOp(fd int) (next ReadinessOperation, tryNow bool) {
	hs, err := r.lookup(fd)
	if err != nil {
		return nil, false
	}
	return hs.readOps.release()
}

// ReleaseWriteOp is ReleaseReadOp for the write direction.
func (r *Reactor) ReleaseWriteOp(fd int) (next ReadinessOperation, tryNow bool) {
	hs, err := r.lookup(fd)
	if err != nil {
		return nil, false
	}
	return hs.writeOps.release()
}

// CancelOps cancels every pending read and write operation on fd.
func (r *Reactor) CancelOps(fd int, tc *ThreadIoContext) error {
	hs, err := r.lookup(fd)
	if err != nil {
		return err
	}
	cancelHandle(hs, tc)
	return nil
}

// Poll waits up to timeout for readiness events, dispatching one
// next_*_op call per ready direction per handle.
func (r *Reactor) Poll(timeout time.Duration, tc *ThreadIoContext) (dispatched int, woken bool, err error) {
	var buf [256]unix.Kevent_t
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, perr := unix.Kevent(r.kq, nil, buf[:], ts)
	if perr != nil {
		if perr == unix.EINTR {
			return 0, false, nil
		}
		return 0, false, NewSystemError(perr.(unix.Errno))
	}
	for i := 0; i < n; i++ {
		ev := buf[i]
		fd := int(ev.Ident)
		if fd == r.intr.fd() {
			r.intr.drain()
			woken = true
			continue
		}
		if ev.Filter == unix.EVFILT_SIGNAL {
			r.dispatchSignal(fd, tc)
			dispatched++
			continue
		}
		hs, lookupErr := r.lookup(fd)
		if lookupErr != nil {
			continue
		}
		errored := ev.Flags&unix.EV_ERROR != 0 || ev.Flags&unix.EV_EOF != 0
		completionErr := Success
		if errored {
			completionErr = socketErrorOrHangup(fd)
		}
		// EV_DISPATCH disables the filter after each delivery; re-enable it
		// up front so a subsequent readiness edge is reported even if the
		// operation we're about to try turns out to need another retry.
		reenable := []unix.Kevent_t{{Ident: uint64(fd), Filter: ev.Filter, Flags: unix.EV_ENABLE}}
		_, _ = unix.Kevent(r.kq, reenable, nil, nil)
		switch ev.Filter {
		case unix.EVFILT_READ:
			if op, ok := hs.readOps.dispatch(); ok {
				op.Perform(tc, completionErr)
				dispatched++
			}
		case unix.EVFILT_WRITE:
			if op, ok := hs.writeOps.dispatch(); ok {
				op.Perform(tc, completionErr)
				dispatched++
			}
		}
	}
	return dispatched, woken, nil
}

// dispatchSignal is factored out of Poll's main loop for signalset_darwin.go:
// EVFILT_SIGNAL events arrive on the same kqueue but are keyed by signal
// number rather than fd, and the reactorCore.handles table is never
// consulted for them.
func (r *Reactor) dispatchSignal(sig int, tc *ThreadIoContext) {
	if op, ok := r.takeSignalOp(sig); ok {
		op.Perform(tc, Success)
	}
}

func socketErrorOrHangup(fd int) SystemError {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && errno != 0 {
		return NewSystemError(unix.Errno(errno))
	}
	se := NewSystemError(0)
	se.sentinel = ErrConnectionAborted
	return se
}

// Close releases the kqueue instance and the interrupter.
func (r *Reactor) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	_ = r.intr.close()
	return unix.Close(r.kq)
}
