package proactor

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLoopbackUDP(t *testing.T) (Socket, *net.UDPAddr) {
	t.Helper()
	sock, err := NewUDPSocket(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })

	sa, err := unix.Getsockname(sock.NativeHandle())
	require.NoError(t, err)
	inet4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	return sock, &net.UDPAddr{IP: net.IPv4(inet4.Addr[0], inet4.Addr[1], inet4.Addr[2], inet4.Addr[3]), Port: inet4.Port}
}

func sockaddrFromUDPAddr(addr *net.UDPAddr) unix.Sockaddr {
	sa := &unix.SockaddrInet4{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To4())
	return sa
}

// TestAsyncIO_UDPEchoPair is spec end-to-end scenario #1: two UDP sockets
// exchange one datagram via AsyncSendTo/AsyncRecvFrom, driven by a
// two-worker IoContext.
func TestAsyncIO_UDPEchoPair(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	sockA, addrA := newLoopbackUDP(t)
	sockB, addrB := newLoopbackUDP(t)
	require.NoError(t, ctx.RegisterSocket(sockA))
	require.NoError(t, ctx.RegisterSocket(sockB))

	type recvResult struct {
		n    int
		from unix.Sockaddr
		err  SystemError
	}
	recvCh := make(chan recvResult, 1)
	sendCh := make(chan SystemError, 1)

	buf := make([]byte, 16)
	AsyncRecvFrom(ctx, sockB.NativeHandle(), buf, 0, func(n int, from unix.Sockaddr, err SystemError) {
		recvCh <- recvResult{n: n, from: from, err: err}
	})
	AsyncSendTo(ctx, sockA.NativeHandle(), []byte("ping"), 0, sockaddrFromUDPAddr(addrB), func(n int, err SystemError) {
		sendCh <- err
	})

	for i := 0; i < 2; i++ {
		go ctx.Run()
	}
	defer ctx.Stop()

	select {
	case err := <-sendCh:
		require.True(t, err.IsSuccess())
	case <-time.After(5 * time.Second):
		t.Fatal("send never completed")
	}

	select {
	case r := <-recvCh:
		require.True(t, r.err.IsSuccess())
		require.Equal(t, 4, r.n)
		require.Equal(t, "ping", string(buf[:r.n]))
		inet4, ok := r.from.(*unix.SockaddrInet4)
		require.True(t, ok)
		require.Equal(t, addrA.Port, inet4.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("recv never completed")
	}
}

// TestAsyncIO_CancelBeforeReady is spec end-to-end scenario #2: an
// AsyncRecv with nothing ever sent completes with OPERATION_CANCELED once
// another goroutine cancels the socket's pending operations.
func TestAsyncIO_CancelBeforeReady(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	sock, _ := newLoopbackUDP(t)
	require.NoError(t, ctx.RegisterSocket(sock))

	resultCh := make(chan SystemError, 1)
	buf := make([]byte, 16)
	AsyncRecv(ctx, sock.NativeHandle(), buf, 0, func(n int, err SystemError) {
		resultCh <- err
	})

	go ctx.Run()
	defer ctx.Stop()

	// Give the recv a moment to actually be armed against the reactor
	// before canceling it.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, ctx.CancelSocketOps(sock))

	select {
	case err := <-resultCh:
		require.ErrorIs(t, err, ErrOperationCanceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled recv never completed")
	}
}

// TestAsyncIO_ConnectRefused is spec end-to-end scenario #6: connecting to
// a loopback port nothing is listening on completes with ECONNREFUSED (or
// an equivalent OS error), not a false success.
func TestAsyncIO_ConnectRefused(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	// Grab a port nothing is listening on by binding a listener, reading
	// back its ephemeral port, then closing it again.
	listener, err := NewTCPListener(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, 1)
	require.NoError(t, err)
	sa, err := unix.Getsockname(listener.NativeHandle())
	require.NoError(t, err)
	inet4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	port := inet4.Port
	require.NoError(t, listener.Close())

	fd, err := newNonblockSocket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	require.NoError(t, err)
	sock := WrapAcceptedSocket(fd, Protocol{Family: unix.AF_INET, Type: unix.SOCK_STREAM, Protocol: unix.IPPROTO_TCP})
	defer sock.Close()
	require.NoError(t, ctx.RegisterSocket(sock))

	resultCh := make(chan SystemError, 1)
	dest := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	AsyncConnect(ctx, fd, dest, func(err SystemError) {
		resultCh <- err
	})

	go ctx.Run()
	defer ctx.Stop()

	select {
	case err := <-resultCh:
		require.False(t, err.IsSuccess())
		require.ErrorIs(t, err, ErrConnectionRefused)
	case <-time.After(2 * time.Second):
		t.Fatal("refused connect never completed")
	}
}

// TestAsyncIO_ZeroLengthReadCompletesWithZero checks the boundary case:
// a zero-length buffer completes with n==0 success, posted rather than
// inline (it still goes through the reactor's speculative-attempt path).
func TestAsyncIO_ZeroLengthReadCompletesWithZero(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	sock, addr := newLoopbackUDP(t)
	require.NoError(t, ctx.RegisterSocket(sock))
	require.NoError(t, unix.Connect(sock.NativeHandle(), sockaddrFromUDPAddr(addr)))

	resultCh := make(chan SystemError, 1)
	AsyncRead(ctx, sock.NativeHandle(), nil, func(n int, err SystemError) {
		require.Equal(t, 0, n)
		resultCh <- err
	})

	go ctx.Run()
	defer ctx.Stop()

	select {
	case err := <-resultCh:
		require.True(t, err.IsSuccess())
	case <-time.After(2 * time.Second):
		t.Fatal("zero-length read never completed")
	}
}
