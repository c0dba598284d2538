// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured-diagnostics seam, held by IoContext (the
// Reactor and TimerQueue hold no Logger): socket registration/
// deregistration, cancel_ops firing, worker start/stop and timer queue
// earliest change go through it. EPOLLERR/EV_ERROR translation and
// interrupter wakes are not logged. It is a
// plain alias for logiface.Logger[logiface.Event] — the generic facade
// the teacher's go.mod already depends on but never exercises outside
// tests — rather than the teacher's own bespoke log.Printf-based Logger
// interface (the teacher's logging.go), which this package replaces
// entirely.
type Logger = *logiface.Logger[logiface.Event]

// NewZerologLogger builds a Logger backed by github.com/rs/zerolog via
// the izerolog adapter, the combination the monorepo ships as
// logiface-zerolog. level filters which of the component diagnostics
// below actually reach z; pass logiface.LevelTrace for the
// full set this package emits.
func NewZerologLogger(z zerolog.Logger, level logiface.Level) Logger {
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(z),
		logiface.WithLevel[*izerolog.Event](level),
	).Logger()
}

// NopLogger returns a Logger that discards everything, the default for
// an IoContext constructed without WithLogger.
func NopLogger() Logger {
	return logiface.New[logiface.Event]()
}

// logReactorRegister logs a successful handle registration.
func logReactorRegister(l Logger, fd int) {
	l.Debug().Int("fd", fd).Log("registered handle")
}

// logReactorDeregister logs a handle deregistration, noting how many
// pending operations were canceled as a side effect.
func logReactorDeregister(l Logger, fd int, canceled int) {
	b := l.Debug().Int("fd", fd)
	if canceled > 0 {
		b = b.Int("canceled", canceled)
	}
	b.Log("deregistered handle")
}

// logCancelOps logs an explicit cancel_ops call.
func logCancelOps(l Logger, fd int, canceled int) {
	l.Debug().Int("fd", fd).Int("canceled", canceled).Log("canceled pending operations")
}

// logSocketError logs the EPOLLERR/EV_ERROR-to-SystemError translation
// (spec §7's documented fallback behavior).
func logSocketError(l Logger, fd int, err SystemError) {
	l.Warning().Int("fd", fd).Err(err).Log("handle reported error condition")
}

// logWorkerStart/logWorkerStop log the lifecycle of an IoContext worker
// goroutine entering and leaving Run/RunOne.
func logWorkerStart(l Logger) { l.Debug().Log("worker started") }
func logWorkerStop(l Logger)  { l.Debug().Log("worker stopped") }

// logTimerEarliestChanged logs TimerQueue's earliest-deadline bookkeeping
// whenever it actually changes (spec §9's conditional-interrupt
// resolution) — the event that decides whether IoContext bothers to
// Interrupt() a sleeping worker at all.
func logTimerEarliestChanged(l Logger, earliest Expiry) {
	l.Trace().Str("earliest", earliest.String()).Log("timer queue earliest deadline changed")
}
