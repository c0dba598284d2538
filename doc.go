// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package proactor implements the proactor pattern: a Reactor
// (epoll on Linux, kqueue on Darwin) drives readiness notification for a
// set of registered handles, while IoContext owns the scheduling loop,
// the timer queue and the shared ready queue any number of Run/RunOne
// workers drain concurrently.
//
// Unlike a reactor-pattern library, callers never see readiness directly:
// AsyncRead, AsyncWrite, AsyncRecv, AsyncSend, AsyncRecvFrom, AsyncSendTo,
// AsyncConnect and AsyncAccept each drive a small state machine that
// retries the underlying syscall through the Reactor until it completes,
// and hand the caller a result, not a "you may now attempt this" signal.
//
// A Strand serializes a group of operations against an IoContext that may
// have several workers running at once, and TimerQueue/WaitableTimer/
// SignalSet give ordered, cancelable timer and signal delivery through the
// same reactor and ready queue as everything else.
package proactor
