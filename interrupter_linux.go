// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package proactor

import "golang.org/x/sys/unix"

// eventfdInterrupter implements interrupter using a single nonblocking
// eventfd, the way the teacher's wakeup_linux.go createWakeFd does: the same
// descriptor serves as both read and write end, and the kernel coalesces
// concurrent writes into its internal counter.
type eventfdInterrupter struct {
	efd int
}

func newInterrupter() (interrupter, error) {
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	return &eventfdInterrupter{efd: efd}, nil
}

func (e *eventfdInterrupter) fd() int { return e.efd }

func (e *eventfdInterrupter) interrupt() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(e.efd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return NewSystemError(err.(unix.Errno))
	}
	return nil
}

func (e *eventfdInterrupter) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(e.efd, buf[:])
		if err != nil {
			return
		}
	}
}

func (e *eventfdInterrupter) close() error {
	if e.efd < 0 {
		return nil
	}
	fd := e.efd
	e.efd = -1
	return unix.Close(fd)
}
