// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

package proactor

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Protocol describes a socket's address family, type and protocol number,
// the way spec §6's External Interfaces names protocol()'s contract:
// family/type/protocol plus an uninitialized_endpoint() factory. This is
// deliberately minimal — a real protocol stack (TCP options, TLS, name
// resolution) is named as an external collaborator the core does not
// implement.
type Protocol struct {
	Family   int
	Type     int
	Protocol int
}

// UninitializedEndpoint returns a zero-value unix.Sockaddr appropriate
// for this protocol's family, for use as an out-parameter destination
// before a connect/accept/recvfrom fills it in.
func (p Protocol) UninitializedEndpoint() unix.Sockaddr {
	switch p.Family {
	case unix.AF_INET:
		return &unix.SockaddrInet4{}
	case unix.AF_INET6:
		return &unix.SockaddrInet6{}
	default:
		return &unix.SockaddrUnix{}
	}
}

// Socket is the facade spec §6 describes the core depending on, rather
// than a concrete protocol/transport implementation: a native handle plus
// the protocol metadata needed to build endpoints. AsyncRead/AsyncWrite/
// etc. only need NativeHandle(); Protocol() exists for callers building
// higher-level framing on top.
type Socket interface {
	NativeHandle() int
	Protocol() Protocol
	Close() error
}

// fdSocket is the reference Socket implementation: a bare non-blocking
// file descriptor plus its Protocol. It is intentionally not exported as
// a constructor beyond NewUDPSocket/NewTCPListener/DupSocket/
// WrapAcceptedSocket below — spec
// §6 names the facade contract, not a sockets library, and this exists
// only to exercise the async state machines in tests and the demo
// command.
type fdSocket struct {
	fd    int
	proto Protocol
}

func (s *fdSocket) NativeHandle() int  { return s.fd }
func (s *fdSocket) Protocol() Protocol { return s.proto }
func (s *fdSocket) Close() error       { return unix.Close(s.fd) }

// newNonblockSocket creates a socket and applies the non-blocking/
// close-on-exec pair of flags as separate calls rather than OR-ing
// SOCK_NONBLOCK|SOCK_CLOEXEC into the type argument: that shortcut is a
// Linux/*BSD socket(2) extension Darwin's kernel does not implement, so
// golang.org/x/sys/unix doesn't even generate those constants for Darwin.
// The explicit SetNonblock/CloseOnExec calls below work identically on
// every platform this package targets.
func newNonblockSocket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// NewUDPSocket creates a non-blocking, close-on-exec UDP socket bound to
// addr (a nil IP means any interface; a nil addr leaves the socket
// unbound, for a client). Grounded on
// original_source/src/socket/unix.rs's plain BSD socket()/bind() pair,
// translated to golang.org/x/sys/unix the way reactor_linux.go/
// reactor_darwin.go use it elsewhere in this package.
func NewUDPSocket(addr *net.UDPAddr) (Socket, error) {
	fd, err := newNonblockSocket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	if addr != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To4())
		if err := unix.Bind(fd, sa); err != nil {
			_ = unix.Close(fd)
			return nil, NewSystemError(err.(unix.Errno))
		}
	}
	return &fdSocket{fd: fd, proto: Protocol{Family: unix.AF_INET, Type: unix.SOCK_DGRAM, Protocol: unix.IPPROTO_UDP}}, nil
}

// NewTCPListener creates a non-blocking, close-on-exec TCP listening
// socket bound to addr and placed in the listen backlog.
func NewTCPListener(addr *net.TCPAddr, backlog int) (Socket, error) {
	fd, err := newNonblockSocket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, NewSystemError(err.(unix.Errno))
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	sa := &unix.SockaddrInet4{Port: addr.Port}
	if addr.IP != nil {
		copy(sa.Addr[:], addr.IP.To4())
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, NewSystemError(err.(unix.Errno))
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, NewSystemError(err.(unix.Errno))
	}
	return &fdSocket{fd: fd, proto: Protocol{Family: unix.AF_INET, Type: unix.SOCK_STREAM, Protocol: unix.IPPROTO_TCP}}, nil
}

// WrapAcceptedSocket wraps a file descriptor returned by AsyncAccept as a
// Socket so it can be registered and driven through AsyncRead/AsyncWrite.
func WrapAcceptedSocket(fd int, proto Protocol) Socket {
	return &fdSocket{fd: fd, proto: proto}
}

// DupSocket extracts and duplicates the raw file descriptor underlying an
// already-connected net.Conn, so a connection made with the standard
// library's dialer/listener can still be driven through this package's
// Reactor. Grounded directly on RTradeLtd-gaio's dupconn (aio_generic.go),
// which performs the same SyscallConn().Control(dup) dance; this exists
// because the spec names name resolution and dialing as external
// collaborators, not something the core reimplements.
func DupSocket(conn net.Conn, proto Protocol) (Socket, error) {
	sc, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return nil, ErrHandleNotRegistered
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, FromError(err)
	}
	var newfd int
	var dupErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		newfd, dupErr = unix.Dup(int(fd))
		if dupErr == nil {
			dupErr = unix.SetNonblock(newfd, true)
		}
	})
	if ctrlErr != nil {
		return nil, FromError(ctrlErr)
	}
	if dupErr != nil {
		return nil, FromError(dupErr)
	}
	return &fdSocket{fd: newfd, proto: proto}, nil
}
