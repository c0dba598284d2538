// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SystemError wraps a platform error code the way the reactor and the async
// I/O state machines observe it: either a raw errno from a syscall, or one of
// the sentinel conditions the scheduler itself manufactures (cancellation,
// connection abort). The zero value is success.
type SystemError struct {
	errno unix.Errno
	// sentinel holds a non-errno condition (cancellation) that has no
	// corresponding errno, or overrides the errno's Error() text.
	sentinel error
}

// Success is the zero-value SystemError: no error occurred.
var Success SystemError

// Errors surfaced by the reactor and the async operation state machines.
//
// OperationCanceled and NoBufferSpace are sentinels with no single
// corresponding errno (cancellation is a scheduler-level event;
// NoBufferSpace is StreamBuf's allocation failure, not a syscall return).
// ConnectionAborted, the translation of an error/hangup event whose
// SO_ERROR reads 0, carries ECONNABORTED. The remainder likewise wrap
// well-known errnos directly so that
// errors.Is(err, proactor.ErrWouldBlock) works whether the error originated
// from a syscall or was constructed by hand in a test.
var (
	ErrInterrupted       = newSentinelError(unix.EINTR, "interrupted")
	ErrWouldBlock        = newSentinelError(unix.EAGAIN, "resource temporarily unavailable")
	ErrInProgress        = newSentinelError(unix.EINPROGRESS, "operation now in progress")
	ErrOperationCanceled = errors.New("proactor: operation canceled")
	ErrConnectionAborted = newSentinelError(unix.ECONNABORTED, "connection aborted")
	ErrConnectionRefused = newSentinelError(unix.ECONNREFUSED, "connection refused")
	ErrNoBufferSpace     = errors.New("proactor: no buffer space available")
)

func newSentinelError(errno unix.Errno, msg string) error {
	return SystemError{errno: errno, sentinel: errors.New("proactor: " + msg)}
}

// NewSystemError wraps a raw errno returned by a syscall wrapper.
func NewSystemError(errno unix.Errno) SystemError {
	if errno == 0 {
		return Success
	}
	return SystemError{errno: errno}
}

// FromError coerces an arbitrary error returned by the unix package (or
// compatible) into a SystemError. Non-errno errors are wrapped verbatim.
func FromError(err error) SystemError {
	if err == nil {
		return Success
	}
	var se SystemError
	if errors.As(err, &se) {
		return se
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return NewSystemError(errno)
	}
	return SystemError{sentinel: err}
}

// Errno returns the underlying errno, or 0 if this is success or a pure
// sentinel (non-errno) condition.
func (e SystemError) Errno() unix.Errno { return e.errno }

// IsSuccess reports whether no error occurred.
func (e SystemError) IsSuccess() bool { return e.errno == 0 && e.sentinel == nil }

// Temporary reports whether the error means "try again later" at the
// syscall level. The async state machines never surface this to a handler;
// the operation stays queued as the reactor's inflight operation and is
// tried again on the next readiness edge (spec §7).
func (e SystemError) Temporary() bool {
	return e.errno == unix.EAGAIN || e.errno == unix.EWOULDBLOCK || e.errno == unix.EINPROGRESS
}

func (e SystemError) Error() string {
	if e.IsSuccess() {
		return "proactor: success"
	}
	if e.sentinel != nil {
		return e.sentinel.Error()
	}
	return e.errno.Error()
}

// Is lets errors.Is(err, ErrWouldBlock) etc. match regardless of whether the
// SystemError was built from a raw errno or from one of the package sentinels.
func (e SystemError) Is(target error) bool {
	// Pure (non-errno) sentinels such as ErrOperationCanceled and
	// ErrNoBufferSpace are plain errors.New values, not SystemError
	// themselves, so they never satisfy the errno/SystemError branches
	// below; every call site assigns e.sentinel the exact sentinel
	// variable, so identity comparison is what errors.Is(err,
	// ErrOperationCanceled) actually needs.
	if e.sentinel != nil && e.sentinel == target {
		return true
	}
	var other SystemError
	if errors.As(target, &other) {
		if other.errno != 0 {
			return e.errno == other.errno
		}
		if other.sentinel != nil {
			return e.sentinel != nil && e.sentinel.Error() == other.sentinel.Error()
		}
		return e.IsSuccess() && other.IsSuccess()
	}
	var errno unix.Errno
	if errors.As(target, &errno) {
		return e.errno == errno
	}
	return false
}

// Unwrap exposes the wrapped errno (when present) for errors.As.
func (e SystemError) Unwrap() error {
	if e.errno != 0 {
		return e.errno
	}
	return nil
}

// Scheduler-level sentinel errors, analogous to the teacher's
// ErrLoopAlreadyRunning family (loop.go) but scoped to IoContext/Reactor/
// Strand semantics instead of a single-threaded event loop.
var (
	// ErrContextStopped names the stopped state of an IoContext. Post and
	// Dispatch return no error, and no function in this package returns
	// this value.
	ErrContextStopped = errors.New("proactor: io context stopped")

	// ErrContextRunning is returned by Restart when a worker is still
	// active; spec §4.6: "restart() — only legal when no worker is running".
	ErrContextRunning = errors.New("proactor: io context has active workers")

	// ErrReactorClosed is returned by reactor registration calls after Close.
	ErrReactorClosed = errors.New("proactor: reactor closed")

	// ErrHandleNotRegistered is returned by reactor operations against a
	// handle that was never registered, or was already deregistered.
	ErrHandleNotRegistered = errors.New("proactor: handle not registered")

	// ErrHandleAlreadyRegistered is returned by RegisterSocket when the fd
	// is already tracked by this reactor.
	ErrHandleAlreadyRegistered = errors.New("proactor: handle already registered")
)

// wrapError mirrors the teacher's errors.go WrapError helper (kept internal:
// a proactor core should expose sentinel errors for errors.Is comparisons,
// per spec §7, not ad hoc wrapped strings as part of its public API).
func wrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
