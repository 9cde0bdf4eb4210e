package coro

import (
	"sync"
	"time"
)

// LatencyMetrics tracks a schedule-switch latency distribution using the
// P-Square streaming quantile estimator, so percentiles are available
// without retaining the underlying samples.
type LatencyMetrics struct {
	mu      sync.RWMutex
	psquare *pSquareMultiQuantile
	count   int
	sum     time.Duration

	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// Record adds a single schedule-switch latency observation.
func (l *LatencyMetrics) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.psquare == nil {
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}
	l.psquare.Update(float64(d))
	l.count++
	l.sum += d
}

// Sample refreshes the cached percentile fields from the estimator and
// returns the number of observations seen so far.
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 || l.psquare == nil {
		return 0
	}
	l.P50 = time.Duration(l.psquare.Quantile(0))
	l.P90 = time.Duration(l.psquare.Quantile(1))
	l.P95 = time.Duration(l.psquare.Quantile(2))
	l.P99 = time.Duration(l.psquare.Quantile(3))
	l.Max = time.Duration(l.psquare.Max())
	l.Mean = l.sum / time.Duration(l.count)
	return l.count
}

// WorkloadMetrics tracks an env's scheduler occupancy over time: current
// depth, historical max, and an exponential moving average (alpha=0.1).
type WorkloadMetrics struct {
	mu          sync.RWMutex
	Current     int
	Max         int
	Avg         float64
	emaWarmedUp bool
}

// Update records a new workload (scheduler queue count) observation.
func (w *WorkloadMetrics) Update(depth int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Current = depth
	if depth > w.Max {
		w.Max = depth
	}
	if !w.emaWarmedUp {
		w.Avg = float64(depth)
		w.emaWarmedUp = true
	} else {
		w.Avg = 0.9*w.Avg + 0.1*float64(depth)
	}
}

// rateCounter tracks events/second with a rolling bucketed window, used here
// to report an env's schedule-switch rate.
type rateCounter struct {
	mu           sync.Mutex
	buckets      []int64
	bucketSize   time.Duration
	lastRotation time.Time
}

func newRateCounter(window, bucket time.Duration) *rateCounter {
	n := int(window / bucket)
	if n < 1 {
		n = 1
	}
	return &rateCounter{
		buckets:      make([]int64, n),
		bucketSize:   bucket,
		lastRotation: time.Now(),
	}
}

func (r *rateCounter) Increment() {
	r.mu.Lock()
	r.rotateLocked()
	r.buckets[len(r.buckets)-1]++
	r.mu.Unlock()
}

func (r *rateCounter) rotateLocked() {
	now := time.Now()
	elapsed := now.Sub(r.lastRotation)
	advance := int64(elapsed) / int64(r.bucketSize)
	if advance <= 0 {
		return
	}
	if advance >= int64(len(r.buckets)) {
		for i := range r.buckets {
			r.buckets[i] = 0
		}
		r.lastRotation = now
		return
	}
	copy(r.buckets, r.buckets[advance:])
	for i := len(r.buckets) - int(advance); i < len(r.buckets); i++ {
		r.buckets[i] = 0
	}
	r.lastRotation = r.lastRotation.Add(time.Duration(advance) * r.bucketSize)
}

func (r *rateCounter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotateLocked()
	var sum int64
	for _, c := range r.buckets {
		sum += c
	}
	if sum == 0 {
		return 0
	}
	duration := float64(len(r.buckets)) * r.bucketSize.Seconds()
	return float64(sum) / duration
}

// EnvMetrics is an env's optional metrics collection, enabled via
// WithManagerMetrics. Disabled by default: the maintenance and schedule
// loops skip every call site when an env's metrics field is nil.
type EnvMetrics struct {
	SwitchLatency LatencyMetrics
	Workload      WorkloadMetrics
	rate          *rateCounter
}

func newEnvMetrics() *EnvMetrics {
	return &EnvMetrics{rate: newRateCounter(10*time.Second, 100*time.Millisecond)}
}

// recordSwitch records one schedule-switch's latency and counts it toward
// the rolling switch rate.
func (m *EnvMetrics) recordSwitch(d time.Duration) {
	m.SwitchLatency.Record(d)
	m.rate.Increment()
}

// SwitchesPerSecond returns the current rolling schedule-switch rate.
func (m *EnvMetrics) SwitchesPerSecond() float64 { return m.rate.Rate() }

// EnvMetricsSnapshot is a point-in-time copy of an EnvMetrics, safe to read
// without further synchronization.
type EnvMetricsSnapshot struct {
	SwitchCount       int
	P50, P90, P95, P99 time.Duration
	MaxLatency        time.Duration
	MeanLatency       time.Duration
	WorkloadCurrent   int
	WorkloadMax       int
	WorkloadAvg       float64
	SwitchesPerSecond float64
}
