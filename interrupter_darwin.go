// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package proactor

import "golang.org/x/sys/unix"

// pipeInterrupter implements interrupter with a self-pipe, the way the
// teacher's wakeup_darwin.go createWakeFd does on platforms without
// eventfd: a nonblocking pipe whose read end is registered with the
// reactor, and whose write end gets a single byte per interrupt().
type pipeInterrupter struct {
	readFD  int
	writeFD int
}

func newInterrupter() (interrupter, error) {
	// Darwin has no pipe2(2); unix.Pipe2 isn't generated for this platform,
	// so CLOEXEC/NONBLOCK are applied individually to each end afterwards
	// (NewReactor in reactor_darwin.go applies unix.CloseOnExec to the
	// kqueue descriptor the same way).
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, NewSystemError(err.(unix.Errno))
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, NewSystemError(err.(unix.Errno))
	}
	return &pipeInterrupter{readFD: fds[0], writeFD: fds[1]}, nil
}

func (p *pipeInterrupter) fd() int { return p.readFD }

func (p *pipeInterrupter) interrupt() error {
	_, err := unix.Write(p.writeFD, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return NewSystemError(err.(unix.Errno))
	}
	return nil
}

func (p *pipeInterrupter) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(p.readFD, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *pipeInterrupter) close() error {
	if p.readFD >= 0 {
		_ = unix.Close(p.readFD)
		p.readFD = -1
	}
	if p.writeFD >= 0 {
		_ = unix.Close(p.writeFD)
		p.writeFD = -1
	}
	return nil
}
