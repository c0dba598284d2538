// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import "time"

// ioContextOptions holds the resolved configuration for a new IoContext.
// Grounded on the teacher's loopOptions/LoopOption pattern (options.go):
// an unexported config struct, an exported option interface, and a
// resolve step that applies every option in order before construction
// finishes.
type ioContextOptions struct {
	logger      Logger
	metrics     *Metrics
	clock       clock
	idleTimeout time.Duration
}

// IoContextOption configures an IoContext at construction (spec §4.6's
// construction-time configuration surface).
type IoContextOption interface {
	applyIoContext(*ioContextOptions) error
}

type ioContextOptionFunc struct {
	apply func(*ioContextOptions) error
}

func (o *ioContextOptionFunc) applyIoContext(cfg *ioContextOptions) error { return o.apply(cfg) }

// WithLogger attaches a structured logger (see logging.go) used for
// reactor registration/deregistration, cancellation, worker start/stop
// and timer-queue-earliest-change diagnostics.
func WithLogger(logger Logger) IoContextOption {
	return &ioContextOptionFunc{func(cfg *ioContextOptions) error {
		if logger != nil {
			cfg.logger = logger
		}
		return nil
	}}
}

// WithMetrics attaches a Metrics collector. When omitted, a fresh
// zero-value collector is created.
func WithMetrics(m *Metrics) IoContextOption {
	return &ioContextOptionFunc{func(cfg *ioContextOptions) error {
		cfg.metrics = m
		return nil
	}}
}

// WithClock overrides the "now" source used by TimerQueue/Expiry, for
// deterministic tests that control the passage of time explicitly —
// mirrors the teacher's SetTickAnchor/TickAnchor test seams (loop.go).
func WithClock(now func() Expiry) IoContextOption {
	return &ioContextOptionFunc{func(cfg *ioContextOptions) error {
		cfg.clock = funcClock(now)
		return nil
	}}
}

type funcClock func() Expiry

func (f funcClock) Now() Expiry { return f() }

// WithWorkerIdleTimeout bounds how long a worker blocks in Reactor.Poll
// when no timer is armed before re-checking Stop()/outstanding work.
// Mainly useful for tests that want Stop() noticed quickly without
// relying on Interrupt() alone.
func WithWorkerIdleTimeout(d time.Duration) IoContextOption {
	return &ioContextOptionFunc{func(cfg *ioContextOptions) error {
		cfg.idleTimeout = d
		return nil
	}}
}

func resolveIoContextOptions(opts []IoContextOption) (*ioContextOptions, error) {
	cfg := &ioContextOptions{
		logger:      NopLogger(),
		metrics:     NewMetrics(),
		clock:       realClock{},
		idleTimeout: maxPollTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyIoContext(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
