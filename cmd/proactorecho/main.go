// Command proactorecho is a small demonstration of the proactor package:
// a UDP echo server that shuts itself down after a period of inactivity.
// Grounded on the teacher's examples/03_timers/main.go (timers driving
// shutdown alongside ordinary work), adapted from JS-runtime setTimeout
// calls to a real IoContext, a UDP Socket, and a WaitableTimer.
//
// Run with: go run ./cmd/proactorecho -addr 127.0.0.1:9999 -idle 10s
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/joeycumines/go-proactor"
	"golang.org/x/sys/unix"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:0", "UDP address to listen on")
	idle := flag.Duration("idle", 30*time.Second, "shut down after this much time without a packet")
	workers := flag.Int("workers", 2, "number of IoContext.Run workers")
	flag.Parse()

	if err := run(*addrFlag, *idle, *workers); err != nil {
		fmt.Fprintln(os.Stderr, "proactorecho:", err)
		os.Exit(1)
	}
}

func run(addr string, idleTimeout time.Duration, workers int) error {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}

	ctx, err := proactor.NewIoContext(proactor.WithLogger(proactor.NopLogger()))
	if err != nil {
		return err
	}
	defer ctx.Close()

	sock, err := proactor.NewUDPSocket(udpAddr)
	if err != nil {
		return err
	}
	defer sock.Close()

	if err := ctx.RegisterSocket(sock); err != nil {
		return err
	}

	idleTimer := proactor.NewWaitableTimer(ctx)
	srv := &echoServer{ctx: ctx, sock: sock, idleTimer: idleTimer, idleTimeout: idleTimeout}
	srv.armIdleTimer()

	log.Printf("proactorecho: listening on %s (idle timeout %s)", addr, idleTimeout)
	srv.receiveOne()

	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			if _, err := ctx.Run(); err != nil {
				log.Printf("proactorecho: worker exited: %v", err)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
	log.Println("proactorecho: idle timeout reached, shutting down")
	return nil
}

// echoServer carries the state an AsyncRecvFrom completion handler needs to
// resubmit itself and reset the idle-shutdown timer.
type echoServer struct {
	ctx         *proactor.IoContext
	sock        proactor.Socket
	idleTimer   *proactor.WaitableTimer
	idleTimeout time.Duration
}

// armIdleTimer (re)arms idleTimer to stop the IoContext after idleTimeout
// with no activity; receiveOne's completion handler calls this again on
// every datagram, so only a sustained gap actually triggers shutdown.
func (s *echoServer) armIdleTimer() {
	s.idleTimer.SetWait(proactor.Now().Add(s.idleTimeout), func(err proactor.SystemError) {
		if err.IsSuccess() {
			s.ctx.Stop()
		}
	})
}

// receiveOne issues one AsyncRecvFrom and, on success, echoes the datagram
// back to its sender before issuing the next receive from within the same
// completion handler — spec §4.4's resubmit-from-completion pattern.
func (s *echoServer) receiveOne() {
	buf := make([]byte, 65507)
	proactor.AsyncRecvFrom(s.ctx, s.sock.NativeHandle(), buf, 0, func(n int, from unix.Sockaddr, err proactor.SystemError) {
		if !err.IsSuccess() {
			log.Printf("proactorecho: recv error: %v", err)
			return
		}
		s.armIdleTimer()
		s.echo(buf[:n], from)
		s.receiveOne()
	})
}

// echo sends payload back to from, logging (but not otherwise handling)
// any send error — a dropped echo reply does not tear down the server.
func (s *echoServer) echo(payload []byte, to unix.Sockaddr) {
	reply := make([]byte, len(payload))
	copy(reply, payload)
	proactor.AsyncSendTo(s.ctx, s.sock.NativeHandle(), reply, 0, to, func(n int, err proactor.SystemError) {
		if !err.IsSuccess() {
			log.Printf("proactorecho: send error: %v", err)
		}
	})
}
