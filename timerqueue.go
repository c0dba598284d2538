// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import (
	"container/heap"
	"sync"
)

// TimerID identifies a single TimerQueue entry, returned by Insert and
// required by Remove. Grounded on the teacher's container/heap-based
// timerHeap (loop.go), extended with stable IDs so entries can be removed
// out of order — the teacher's heap only ever popped the earliest entry,
// which is not enough for WaitableTimer.Cancel / SetWait's "replace the
// previous operation" semantics (spec §4.5).
type TimerID uint64

// timerEntry is spec §3's TimerEntry: (expiry, unique id, operation).
type timerEntry struct {
	expiry Expiry
	id     TimerID
	op     Operation
	index  int // position in the heap slice, maintained by container/heap
}

type timerMinHeap []*timerEntry

func (h timerMinHeap) Len() int { return len(h) }

// Less orders by (expiry, id) giving the stable total order spec §3 requires.
func (h timerMinHeap) Less(i, j int) bool {
	if h[i].expiry.Equal(h[j].expiry) {
		return h[i].id < h[j].id
	}
	return h[i].expiry.Before(h[j].expiry)
}

func (h timerMinHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerMinHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerMinHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerQueue is spec §4.5's ordered collection of pending (deadline,
// operation) entries: insert, remove, drain-expired, peek-earliest, all
// O(log n) via container/heap save for DrainExpired which is O(k) in the
// number of expired entries.
type TimerQueue struct {
	mu     sync.Mutex
	heap   timerMinHeap
	byID   map[TimerID]*timerEntry
	nextID TimerID
}

// NewTimerQueue creates an empty TimerQueue.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{byID: make(map[TimerID]*timerEntry)}
}

// Insert adds an entry expiring at expiry, wrapping op so that it runs as
// the earliest entry's completion. It returns the new entry's ID and
// whether it displaced the previous earliest entry — the caller (IoContext)
// uses that to decide whether to interrupt a blocked poll, resolving spec
// §9's second Open Question ("only interrupt when the earliest timer
// actually moved") instead of the source's unconditional interrupt.
func (q *TimerQueue) Insert(expiry Expiry, op Operation) (TimerID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID
	e := &timerEntry{expiry: expiry, id: id, op: op}
	q.byID[id] = e
	heap.Push(&q.heap, e)

	// The heap root is the new earliest entry iff this one sorted first.
	becameEarliest := q.heap[0] == e
	return id, becameEarliest
}

// Remove removes the entry with the given id, if still present, returning
// its Operation (nil if not found, e.g. it already fired) and whether the
// earliest entry changed as a result.
func (q *TimerQueue) Remove(id TimerID) (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	wasEarliest := q.heap[0] == e

	delete(q.byID, id)
	heap.Remove(&q.heap, e.index)

	changed := wasEarliest
	return e.op, changed
}

// DrainExpired pops every entry whose expiry is <= now and hands its
// Operation to tc as a ready (successful) completion, per spec §4.3 step 3
// ("Drain expired timers into this_thread") and §4.5's drain_expired.
func (q *TimerQueue) DrainExpired(now Expiry, tc *ThreadIoContext) {
	q.mu.Lock()
	var expired []Operation
	for len(q.heap) > 0 {
		top := q.heap[0]
		if top.expiry.After(now) {
			break
		}
		heap.Pop(&q.heap)
		delete(q.byID, top.id)
		expired = append(expired, top.op)
	}
	q.mu.Unlock()

	for _, op := range expired {
		tc.pushReady(op)
	}
}

// FirstExpiry returns the earliest pending deadline, if any.
func (q *TimerQueue) FirstExpiry() (Expiry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	earliest, ok := q.earliestLocked()
	return earliest, ok
}

// earliestLocked must be called with q.mu held.
func (q *TimerQueue) earliestLocked() (Expiry, bool) {
	if len(q.heap) == 0 {
		return Expiry{}, false
	}
	return q.heap[0].expiry, true
}

// Len reports the number of pending entries. IoContext does not consult
// it: whether outstanding work remains is tracked by its own outstanding
// counter (spec I3).
func (q *TimerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}
