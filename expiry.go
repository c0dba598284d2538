// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import "time"

// Expiry is a monotonic deadline with nanosecond resolution and a total
// order, per spec §3. It is a thin wrapper over time.Time restricted to the
// monotonic clock reading, following the teacher's own approach to
// monotonic timestamps in loop.go (tickAnchor + tickElapsedTime, combined
// via CurrentTickTime so wall-clock adjustments never perturb ordering).
type Expiry struct {
	t time.Time
}

// clock abstracts the "now" source so that TimerQueue and IoContext tests
// can inject deterministic time (see WithClock in options.go), mirroring
// loop.go's SetTickAnchor/TickAnchor test seams.
type clock interface {
	Now() Expiry
}

type realClock struct{}

func (realClock) Now() Expiry { return Expiry{t: time.Now()} }

// Now returns the current monotonic Expiry using the real-time clock.
func Now() Expiry { return realClock{}.Now() }

// Add returns the Expiry offset by d (may be negative).
func (e Expiry) Add(d time.Duration) Expiry { return Expiry{t: e.t.Add(d)} }

// Before reports whether e occurs strictly before other.
func (e Expiry) Before(other Expiry) bool { return e.t.Before(other.t) }

// After reports whether e occurs strictly after other.
func (e Expiry) After(other Expiry) bool { return e.t.After(other.t) }

// Equal reports whether e and other represent the same instant.
func (e Expiry) Equal(other Expiry) bool { return e.t.Equal(other.t) }

// Sub returns the duration e-other.
func (e Expiry) Sub(other Expiry) time.Duration { return e.t.Sub(other.t) }

// IsZero reports whether e is the zero Expiry (unset).
func (e Expiry) IsZero() bool { return e.t.IsZero() }

// DurationUntil returns min(e-now, max); negative durations (already
// expired) clamp to 0, matching spec §3's "duration_until(max) returning
// min(earliest − now, max)" with the added floor asio itself applies when
// computing a poll timeout.
func (e Expiry) DurationUntil(now Expiry, max time.Duration) time.Duration {
	d := e.Sub(now)
	if d < 0 {
		d = 0
	}
	if d > max {
		return max
	}
	return d
}

// String implements fmt.Stringer for debugging/log output.
func (e Expiry) String() string { return e.t.Format(time.RFC3339Nano) }
