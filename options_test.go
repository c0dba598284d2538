package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_WithMetricsRecordsRegistration(t *testing.T) {
	m := NewMetrics()
	ctx, err := NewIoContext(WithMetrics(m))
	require.NoError(t, err)
	defer ctx.Close()

	sock, _ := newLoopbackUDP(t)
	require.NoError(t, ctx.RegisterSocket(sock))
	assert.Equal(t, 1, m.Registered.Current)

	require.NoError(t, ctx.DeregisterSocket(sock))
	assert.Equal(t, 0, m.Registered.Current)
}

func TestOptions_WithClockOverridesNow(t *testing.T) {
	fixed := Now().Add(time.Hour)
	ctx, err := NewIoContext(WithClock(func() Expiry { return fixed }))
	require.NoError(t, err)
	defer ctx.Close()

	var fired bool
	timer := NewWaitableTimer(ctx)
	// fixed "now" is already past this deadline, so the timer should be
	// ready to fire on the very first drain.
	timer.SetWait(fixed.Add(-time.Minute), func(SystemError) { fired = true })

	n, err := ctx.RunOne()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, fired, "timer armed in the past relative to the overridden clock should fire immediately")
}

func TestOptions_NilOptionIsIgnored(t *testing.T) {
	ctx, err := NewIoContext(nil, WithWorkerIdleTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer ctx.Close()
}
