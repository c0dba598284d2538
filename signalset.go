// Copyright 2025 Joseph Cumines / Permission to use, copy, modify, and
// distribute this software for any purpose with or without fee is hereby
// granted, provided that this copyright notice appears in all copies.

package proactor

// SignalHandler is SignalSet's Handler (spec §4.8): invoked once per
// AsyncWait with the signal number that was delivered, or a non-success
// SystemError if the wait was canceled instead.
type SignalHandler func(sig int, err SystemError)
