// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package proactor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for an IoContext: how many readiness
// events a single Reactor.Poll call dispatches, how many handles are
// currently registered, and a dispatched-events-per-second rate. All fields are
// optional and safe for concurrent use from any worker goroutine.
//
// Grounded on the teacher's Metrics/LatencyMetrics/QueueMetrics/TPSCounter
// (metrics.go): the P-Square streaming percentile engine (psquare.go) and
// the bucketed TPSCounter carry over unchanged, but what gets measured
// changes from "per-task execution latency" and "ingress/internal/
// microtask queue depth" to "events dispatched per poll" and "registered
// handle count" — the quantities runOnce (iocontext.go) actually produces.
type Metrics struct {
	// Poll tracks how many readiness events each Reactor.Poll call
	// dispatches.
	Poll PollMetrics

	// Registered tracks the number of handles currently registered with
	// the reactor.
	Registered RegisteredMetrics

	// Completions counts readiness events dispatched by Reactor.Poll per
	// second.
	Completions *TPSCounter
}

// NewMetrics returns a ready-to-use, zero-valued Metrics collector. This is
// the default a new IoContext uses when constructed without WithMetrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Completions: NewTPSCounter(10*time.Second, 100*time.Millisecond),
	}
}

// observePoll records one Reactor.Poll call that dispatched n readiness
// events, and counts those n events towards the completions rate.
func (m *Metrics) observePoll(n int) {
	m.Poll.Record(n)
	if n > 0 {
		m.Completions.IncrementBy(int64(n))
	}
}

// incRegistered records a successful RegisterSocket.
func (m *Metrics) incRegistered() { m.Registered.add(1) }

// decRegistered records a successful DeregisterSocket.
func (m *Metrics) decRegistered() { m.Registered.add(-1) }

// PollMetrics tracks the distribution of readiness-events-dispatched-per-
// Reactor.Poll-call, using the P-Square algorithm for O(1) streaming
// percentile estimation (psquare.go).
type PollMetrics struct {
	psquare *pSquareMultiQuantile

	mu sync.RWMutex

	sampleIdx   int
	sampleCount int
	samples     [pollSampleSize]int

	P50 float64
	P90 float64
	P95 float64
	P99 float64
	Max float64

	Mean float64
	Sum  int64
}

// pollSampleSize is the rolling buffer of exact samples retained for small
// sample counts, mirroring the teacher's sampleSize constant.
const pollSampleSize = 1000

// Record records one poll's dispatched-event count.
func (l *PollMetrics) Record(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.psquare == nil {
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}
	l.psquare.Update(float64(n))

	if l.sampleCount >= pollSampleSize {
		l.Sum -= int64(l.samples[l.sampleIdx])
	}
	l.samples[l.sampleIdx] = n
	l.Sum += int64(n)
	l.sampleIdx++
	if l.sampleIdx >= pollSampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < pollSampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from the collected samples, returning the
// number of samples used.
func (l *PollMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return 0
	}

	if count < 5 || l.psquare == nil {
		sorted := make([]int, count)
		copy(sorted, l.samples[:count])
		sort.Ints(sorted)

		l.P50 = float64(sorted[percentileIndex(count, 50)])
		l.P90 = float64(sorted[percentileIndex(count, 90)])
		l.P95 = float64(sorted[percentileIndex(count, 95)])
		l.P99 = float64(sorted[percentileIndex(count, 99)])
		l.Max = float64(sorted[count-1])
		l.Mean = float64(l.Sum) / float64(count)
		return count
	}

	l.P50 = l.psquare.Quantile(0)
	l.P90 = l.psquare.Quantile(1)
	l.P95 = l.psquare.Quantile(2)
	l.P99 = l.psquare.Quantile(3)
	l.Max = l.psquare.Max()
	l.Mean = float64(l.Sum) / float64(count)
	return count
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// RegisteredMetrics tracks the registered-handle gauge: its current value,
// the maximum observed, and an exponential moving average (alpha=0.1),
// mirroring the teacher's QueueMetrics but for a single gauge rather than
// three independent queues.
type RegisteredMetrics struct {
	mu sync.RWMutex

	Current int
	Max     int
	Avg     float64

	emaInitialized bool
}

// Update sets the registered-handle gauge to depth.
func (q *RegisteredMetrics) Update(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateLocked(depth)
}

func (q *RegisteredMetrics) updateLocked(depth int) {
	q.Current = depth
	if depth > q.Max {
		q.Max = depth
	}
	if !q.emaInitialized {
		q.Avg = float64(depth)
		q.emaInitialized = true
	} else {
		q.Avg = 0.9*q.Avg + 0.1*float64(depth)
	}
}

// add atomically adjusts the gauge by d, avoiding the read-then-write race
// a separate read-current/Update pair would have under concurrent
// RegisterSocket/DeregisterSocket calls.
func (q *RegisteredMetrics) add(d int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateLocked(q.Current + d)
}

// TPSCounter tracks events per second with a rolling window, using a ring
// buffer of time-bucketed counts. Kept from the teacher's metrics.go
// unchanged beyond adding IncrementBy for batched completions.
type TPSCounter struct {
	lastRotation atomic.Value // time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewTPSCounter creates a new TPS counter with the given rolling window and
// bucket granularity. windowSize and bucketSize must both be positive, and
// bucketSize must not exceed windowSize.
func NewTPSCounter(windowSize, bucketSize time.Duration) *TPSCounter {
	if windowSize <= 0 {
		panic("proactor: windowSize must be positive (use > 0 duration)")
	}
	if bucketSize <= 0 {
		panic("proactor: bucketSize must be positive (use > 0 duration)")
	}
	if bucketSize > windowSize {
		panic("proactor: bucketSize cannot exceed windowSize (use <= windowSize)")
	}

	bucketCount := int(windowSize / bucketSize)
	counter := &TPSCounter{
		buckets:    make([]int64, bucketCount),
		bucketSize: bucketSize,
		windowSize: windowSize,
	}
	counter.lastRotation.Store(time.Now())
	return counter
}

// Increment records a single event.
func (t *TPSCounter) Increment() { t.IncrementBy(1) }

// IncrementBy records n events at once, avoiding n separate lock
// acquisitions for batched completions (observePoll).
func (t *TPSCounter) IncrementBy(n int64) {
	t.rotate()
	t.mu.Lock()
	t.buckets[len(t.buckets)-1] += n
	t.mu.Unlock()
}

// rotate advances the bucket window if time has passed.
func (t *TPSCounter) rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastRotation := t.lastRotation.Load().(time.Time)
	elapsed := now.Sub(lastRotation)

	bucketsToAdvanceInt64 := int64(elapsed) / int64(t.bucketSize)
	if bucketsToAdvanceInt64 < 0 {
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	} else if bucketsToAdvanceInt64 > int64(len(t.buckets)) {
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	}
	bucketsToAdvance := int(bucketsToAdvanceInt64)

	if bucketsToAdvance >= len(t.buckets) {
		for i := range t.buckets {
			t.buckets[i] = 0
		}
		t.lastRotation.Store(now)
		return
	}
	if bucketsToAdvance <= 0 {
		return
	}

	copy(t.buckets, t.buckets[bucketsToAdvance:])
	for i := len(t.buckets) - bucketsToAdvance; i < len(t.buckets); i++ {
		t.buckets[i] = 0
	}
	t.lastRotation.Store(lastRotation.Add(time.Duration(bucketsToAdvance) * t.bucketSize))
}

// TPS returns the current events-per-second rate.
func (t *TPSCounter) TPS() float64 {
	t.rotate()

	t.mu.Lock()
	defer t.mu.Unlock()

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}
	if sum == 0 {
		return 0
	}

	monitoredDuration := float64(len(t.buckets)) * t.bucketSize.Seconds()
	return float64(sum) / monitoredDuration
}
