package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiry_Ordering(t *testing.T) {
	now := Now()
	later := now.Add(10 * time.Millisecond)
	earlier := now.Add(-10 * time.Millisecond)

	assert.True(t, now.Before(later))
	assert.True(t, later.After(now))
	assert.True(t, earlier.Before(now))
	assert.True(t, now.Equal(now))
	assert.False(t, now.Equal(later))
}

func TestExpiry_DurationUntil(t *testing.T) {
	now := Now()
	future := now.Add(50 * time.Millisecond)

	d := future.DurationUntil(now, time.Second)
	assert.InDelta(t, 50*time.Millisecond, d, float64(5*time.Millisecond))

	// Already-expired clamps to zero, never negative.
	past := now.Add(-time.Second)
	assert.Equal(t, time.Duration(0), past.DurationUntil(now, time.Second))

	// Clamps to max when the deadline is further away than max.
	farFuture := now.Add(10 * time.Second)
	assert.Equal(t, 100*time.Millisecond, farFuture.DurationUntil(now, 100*time.Millisecond))
}

func TestExpiry_Sub(t *testing.T) {
	now := Now()
	later := now.Add(time.Second)
	assert.Equal(t, time.Second, later.Sub(now))
}

func TestExpiry_IsZero(t *testing.T) {
	var e Expiry
	assert.True(t, e.IsZero())
	assert.False(t, Now().IsZero())
}
