// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

package proactor

import "golang.org/x/sys/unix"

// CompletionFunc is the direct-closure Handler variant from spec §6 used by
// the read/write/recv/send family: it receives the number of bytes
// transferred and the resulting error, Success on completion. AsyncConnect
// and AsyncAccept take their own handler types.
type CompletionFunc func(n int, err SystemError)

// AcceptFunc is the Handler variant for AsyncAccept: it receives the
// accepted connection's native handle.
type AcceptFunc func(fd int, err SystemError)

// ioRetryLoop implements the retry+enqueue+complete algorithm shared by
// every read-family and write-family operation: attempt the syscall once
// speculatively (or on readiness), and if it returns EAGAIN/EWOULDBLOCK,
// stay registered as the Reactor's inflight operation for that fd and
// direction until a subsequent readiness edge lets it try again.
// Grounded on RTradeLtd-gaio's watcher loop (aio_generic.go/watcher.go),
// which dup()s the raw fd and retries a non-blocking syscall until it
// stops returning EAGAIN, generalized here into a reusable op instead of
// one loop per gaio watcher goroutine.
//
// Exactly one submit call registers the operation with the reactor for
// its entire lifetime: the reactor's opsQueue retains the operation
// itself as "inflight" and hands it back to Perform on every readiness
// edge (reactor.go's dispatch/release split), so a retry never needs to
// re-add anything — it simply returns, leaving the operation exactly
// where the reactor already expects to find it next time.
type ioRetryLoop struct {
	ctx     *IoContext
	fd      int
	read    bool // true: arm on the fd's read readiness queue; false: write queue
	attempt func() (n int, err SystemError) // one non-blocking syscall attempt
	done    func(tc *ThreadIoContext, n int, err SystemError)
}

func (l *ioRetryLoop) submit(tc *ThreadIoContext, op ReadinessOperation) {
	r := l.ctx.Reactor()
	if l.read {
		_ = r.AddReadOp(l.fd, op, tc)
	} else {
		_ = r.AddWriteOp(l.fd, op, tc)
	}
}

// perform is the ReadinessOperation.Perform entry point: called either as
// a speculative immediate attempt (err == Success, queue was idle) or as
// a genuine readiness/cancellation notification from the Reactor.
func (l *ioRetryLoop) perform(tc *ThreadIoContext, err SystemError) {
	if !err.IsSuccess() && !err.Temporary() {
		l.finish(tc, 0, err)
		return
	}
	n, attemptErr := l.attempt()
	if attemptErr.Temporary() {
		// Still not ready. Nothing to do: this operation remains the
		// reactor's inflight operation for fd/direction, and the next
		// readiness edge calls Perform again without any re-submission.
		return
	}
	l.finish(tc, n, attemptErr)
}

// finish releases the reactor slot and pushes the completion closure onto
// tc's ready list. workFinished is not called here: the work unit started
// by startRetryLoop/AsyncConnect stays outstanding until the completion
// closure itself is popped and run by runOnce, which is the sole decrement
// point (mirroring the uniform "one workStarted, one workFinished, at the
// point the handler actually runs" discipline the timer/signal completion
// paths follow too).
func (l *ioRetryLoop) finish(tc *ThreadIoContext, n int, err SystemError) {
	l.release(tc)
	l.done(tc, n, err)
}

// release tells the reactor this operation's slot is free, promoting
// whatever was queued behind it (if anything) and trying that one
// immediately — the same "tryNow" treatment a freshly submitted
// operation gets on an idle queue. Safe to call unconditionally: if this
// operation was completed via cancellation, the queue was already
// drained by cancel and release is a no-op.
func (l *ioRetryLoop) release(tc *ThreadIoContext) {
	r := l.ctx.Reactor()
	var next ReadinessOperation
	var tryNow bool
	if l.read {
		next, tryNow = r.ReleaseReadOp(l.fd)
	} else {
		next, tryNow = r.ReleaseWriteOp(l.fd)
	}
	if tryNow {
		next.Perform(tc, Success)
	}
}

func startRetryLoop(ctx *IoContext, fd int, read bool, attempt func() (int, SystemError), done func(*ThreadIoContext, int, SystemError)) {
	ctx.workStarted()
	l := &ioRetryLoop{ctx: ctx, fd: fd, read: read, attempt: attempt, done: done}
	tc := &ThreadIoContext{ctx: ctx}
	// Submitting always goes through the Reactor: on an idle queue this
	// calls Perform(tc, Success) synchronously from within submit (no
	// extra worker hop for the common case of data already available); on
	// a busy queue it waits in line and gets tried once whatever is ahead
	// of it finishes (ioRetryLoop.release).
	l.submit(tc, readinessOperationFunc{perform: l.perform})
	ctx.absorb(tc)
}

// AsyncRead issues a single non-blocking read(2) against fd, retrying
// through the reactor on EAGAIN, and invoking handler exactly once with
// either the number of bytes read or an error (spec §4.4 AsyncRead).
func AsyncRead(ctx *IoContext, fd int, buf []byte, handler CompletionFunc) {
	startRetryLoop(ctx, fd, true,
		func() (int, SystemError) {
			n, err := unix.Read(fd, buf)
			return n, FromError(err)
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, err) }))
		})
}

// AsyncWrite issues a single non-blocking write(2), retrying on EAGAIN
// (spec §4.4 AsyncWrite).
func AsyncWrite(ctx *IoContext, fd int, buf []byte, handler CompletionFunc) {
	startRetryLoop(ctx, fd, false,
		func() (int, SystemError) {
			n, err := unix.Write(fd, buf)
			return n, FromError(err)
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, err) }))
		})
}

// AsyncRecv issues a non-blocking recv(2) with the given flags (spec
// §4.4 AsyncRecv). Distinct from AsyncRead because recv() accepts flags
// such as MSG_PEEK that read() cannot express.
func AsyncRecv(ctx *IoContext, fd int, buf []byte, flags int, handler CompletionFunc) {
	startRetryLoop(ctx, fd, true,
		func() (int, SystemError) {
			n, _, err := unix.Recvfrom(fd, buf, flags)
			return n, FromError(err)
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, err) }))
		})
}

// AsyncSend issues a non-blocking send(2) with the given flags (spec
// §4.4 AsyncSend).
func AsyncSend(ctx *IoContext, fd int, buf []byte, flags int, handler CompletionFunc) {
	startRetryLoop(ctx, fd, false,
		func() (int, SystemError) {
			err := unix.Sendto(fd, buf, flags, nil)
			if err != nil {
				return 0, FromError(err)
			}
			return len(buf), Success
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, err) }))
		})
}

// RecvFromFunc is AsyncRecvFrom's Handler: it additionally receives the
// sender's address.
type RecvFromFunc func(n int, from unix.Sockaddr, err SystemError)

// AsyncRecvFrom issues a non-blocking recvfrom(2) (spec §4.4
// AsyncRecvFrom), used by connectionless (UDP) sockets.
func AsyncRecvFrom(ctx *IoContext, fd int, buf []byte, flags int, handler RecvFromFunc) {
	var from unix.Sockaddr
	startRetryLoop(ctx, fd, true,
		func() (int, SystemError) {
			n, addr, err := unix.Recvfrom(fd, buf, flags)
			from = addr
			return n, FromError(err)
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, from, err) }))
		})
}

// AsyncSendTo issues a non-blocking sendto(2) to the given address (spec
// §4.4 AsyncSendTo).
func AsyncSendTo(ctx *IoContext, fd int, buf []byte, flags int, to unix.Sockaddr, handler CompletionFunc) {
	startRetryLoop(ctx, fd, false,
		func() (int, SystemError) {
			err := unix.Sendto(fd, buf, flags, to)
			if err != nil {
				return 0, FromError(err)
			}
			return len(buf), Success
		},
		func(tc *ThreadIoContext, n int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(n, err) }))
		})
}

// AsyncConnect issues connect(2) on fd towards addr and, if the kernel
// does not resolve it synchronously, waits for write-readiness before
// inspecting SO_ERROR to determine the outcome (spec §4.4 AsyncConnect:
// "The first attempt calls connect; on EINPROGRESS it registers a
// write-op; on completion it reads SO_ERROR").
//
// Unlike the read/write-family operations, the "try again" signal here
// is not something a single syscall can report on demand: getsockopt
// SO_ERROR reads 0 both for "connected" and for "still connecting", so
// the generic ioRetryLoop speculative-first-attempt pattern (checking
// SO_ERROR before any write-readiness has ever been observed) would
// misreport an in-progress connection as successful. AsyncConnect
// therefore performs the real connect(2) itself up front and only
// arms a write-op — and only then starts checking SO_ERROR — once
// connect(2) reports a temporary errno (EINPROGRESS, EAGAIN); any other
// error, EALREADY included, completes the handler straight away.
func AsyncConnect(ctx *IoContext, fd int, addr unix.Sockaddr, handler func(err SystemError)) {
	ctx.workStarted()
	tc := &ThreadIoContext{ctx: ctx}

	connErr := FromError(unix.Connect(fd, addr))
	if connErr.IsSuccess() || !connErr.Temporary() {
		// Resolved synchronously: either connected immediately or failed
		// outright (e.g. connecting to a local address with no listener
		// can return ECONNREFUSED straight from connect(2) on some
		// platforms). Still posted through the reactor, not invoked
		// inline, to keep handler ordering uniform (spec §4.4 rationale).
		// workFinished is not called here: the work started above stays
		// outstanding until runOnce pops and runs this completion closure.
		tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(connErr) }))
		ctx.absorb(tc)
		return
	}

	// submitted guards the one genuine ambiguity in this operation: the
	// reactor's add-on-an-idle-queue fast path tries a freshly submitted
	// operation immediately, before any real write-readiness edge has
	// ever been observed. For read/write-family ops that's harmless — the
	// syscall itself authoritatively reports EAGAIN. For connect it is
	// not: SO_ERROR reads 0 both "already connected" and "still
	// connecting", so that immediate pre-edge check cannot be trusted.
	// The first call therefore always reports "not ready" without even
	// inspecting SO_ERROR, leaving the operation inflight until the
	// reactor hands it a real write-readiness edge.
	var submitted bool
	l := &ioRetryLoop{
		ctx:  ctx,
		fd:   fd,
		read: false,
		attempt: func() (int, SystemError) {
			if !submitted {
				submitted = true
				return 0, NewSystemError(unix.EAGAIN)
			}
			errno, sockErr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
			if sockErr != nil {
				return 0, FromError(sockErr)
			}
			if errno != 0 {
				return 0, NewSystemError(unix.Errno(errno))
			}
			return 0, Success
		},
		done: func(tc *ThreadIoContext, _ int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(err) }))
		},
	}
	l.submit(tc, readinessOperationFunc{perform: l.perform})
	ctx.absorb(tc)
}

// AsyncAccept accepts a single incoming connection on a listening fd
// (spec §4.4 AsyncAccept), retrying on EAGAIN the same way as the other
// read-family operations. unix.Accept4 is Linux/*BSD-only (no accept4(2)
// on Darwin), so this uses the portable unix.Accept plus a manual
// SetNonblock/CloseOnExec pair on the accepted descriptor, the same
// two-step pattern interrupter_darwin.go uses for its pipe ends.
func AsyncAccept(ctx *IoContext, fd int, handler AcceptFunc) {
	startRetryLoop(ctx, fd, true,
		func() (int, SystemError) {
			nfd, _, err := unix.Accept(fd)
			if err != nil {
				return 0, FromError(err)
			}
			unix.CloseOnExec(nfd)
			if err := unix.SetNonblock(nfd, true); err != nil {
				_ = unix.Close(nfd)
				return 0, FromError(err)
			}
			return nfd, Success
		},
		func(tc *ThreadIoContext, nfd int, err SystemError) {
			tc.pushReady(OperationFunc(func(tc *ThreadIoContext) { handler(nfd, err) }))
		})
}
