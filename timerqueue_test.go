package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue_InsertBecomesEarliest(t *testing.T) {
	q := NewTimerQueue()
	now := Now()

	_, becameEarliest := q.Insert(now.Add(10*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))
	assert.True(t, becameEarliest, "first entry is always the new earliest")

	_, becameEarliest = q.Insert(now.Add(20*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))
	assert.False(t, becameEarliest, "later deadline does not displace the earliest")

	_, becameEarliest = q.Insert(now.Add(5*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))
	assert.True(t, becameEarliest, "earlier deadline becomes the new earliest")
}

func TestTimerQueue_RemoveReportsEarliestChange(t *testing.T) {
	q := NewTimerQueue()
	now := Now()

	id1, _ := q.Insert(now.Add(5*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))
	id2, _ := q.Insert(now.Add(10*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))

	// Removing the non-earliest entry doesn't change the earliest.
	op, changed := q.Remove(id2)
	require.NotNil(t, op)
	assert.False(t, changed)

	// Removing the earliest entry does.
	op, changed = q.Remove(id1)
	require.NotNil(t, op)
	assert.True(t, changed)

	// Removing an already-removed id is a no-op.
	op, changed = q.Remove(id1)
	assert.Nil(t, op)
	assert.False(t, changed)
}

// TestTimerQueue_DrainExpiredOrdering is spec P4: for timers t1, t2 with
// deadlines d1 <= d2, if both fire during the same drain, t1's operation
// precedes t2's in the ready list.
func TestTimerQueue_DrainExpiredOrdering(t *testing.T) {
	q := NewTimerQueue()
	now := Now()

	var order []string
	record := func(name string) Operation {
		return OperationFunc(func(*ThreadIoContext) { order = append(order, name) })
	}

	q.Insert(now.Add(10*time.Millisecond), record("ten"))
	q.Insert(now.Add(5*time.Millisecond), record("five"))
	q.Insert(now.Add(20*time.Millisecond), record("twenty"))

	tc := &ThreadIoContext{}
	q.DrainExpired(now.Add(15*time.Millisecond), tc)

	require.Len(t, tc.ready, 2, "only five and ten have expired by +15ms")
	for _, op := range tc.ready {
		op.Call(tc)
	}
	assert.Equal(t, []string{"five", "ten"}, order)
	assert.Equal(t, 1, q.Len(), "twenty is still pending")
}

func TestTimerQueue_FirstExpiry(t *testing.T) {
	q := NewTimerQueue()
	_, ok := q.FirstExpiry()
	assert.False(t, ok, "empty queue has no earliest")

	now := Now()
	q.Insert(now.Add(10*time.Millisecond), OperationFunc(func(*ThreadIoContext) {}))
	earliest, ok := q.FirstExpiry()
	require.True(t, ok)
	assert.True(t, earliest.Equal(now.Add(10 * time.Millisecond)))
}
