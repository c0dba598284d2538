// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

// interrupter is spec §4.2's unidirectional wake channel: a file descriptor
// the Reactor registers for read-readiness, used to break a thread blocked
// in poll() when another thread posts work, arms/disarms a timer, or wants
// the worker to notice stop() was called. Grounded on the teacher's
// wakeup_linux.go/wakeup_darwin.go createWakeFd/drainWakeUpPipe pair, which
// picks an eventfd on Linux and a self-pipe on Darwin for the same purpose.
type interrupter interface {
	// fd returns the descriptor the Reactor should register for readability.
	fd() int

	// interrupt wakes one blocked poll(), coalescing repeated calls between
	// drains the same way an eventfd counter or a single-byte pipe does.
	interrupt() error

	// drain consumes whatever interrupt() left readable, so the descriptor
	// goes back to "not ready" until the next interrupt().
	drain()

	// close releases the underlying descriptor(s).
	close() error
}
