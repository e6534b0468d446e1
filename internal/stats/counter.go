package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// Counter is a lock-free running aggregate over a stream of int64 values.
// It tracks how many values were recorded, their sum, and their running
// minimum and maximum. All methods are safe for unbounded concurrent use.
//
// The zero value is not ready to use; construct with NewCounter so the
// extrema start at their sentinel seeds.
type Counter struct {
	count atomic.Int64
	total atomic.Int64
	// min and max are seeded with math.MaxInt64 / math.MinInt64 so the
	// first recorded value always wins the comparison. Min() and Max()
	// translate an untouched sentinel to 0.
	min atomic.Int64
	max atomic.Int64
}

// NewCounter returns a Counter with no observations.
func NewCounter() *Counter {
	c := &Counter{}
	c.min.Store(math.MaxInt64)
	c.max.Store(math.MinInt64)
	return c
}

// Add records one observation. Values may be negative (seek distances).
// Count grows by exactly one and Total by exactly value per call, with no
// lost updates under any level of concurrency.
func (c *Counter) Add(value int64) {
	c.count.Add(1)
	c.total.Add(value)
	for {
		prev := c.min.Load()
		if value >= prev || c.min.CompareAndSwap(prev, value) {
			break
		}
	}
	for {
		prev := c.max.Load()
		if value <= prev || c.max.CompareAndSwap(prev, value) {
			break
		}
	}
}

// Count returns the number of recorded values.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// Total returns the sum of all recorded values.
func (c *Counter) Total() int64 {
	return c.total.Load()
}

// Min returns the smallest recorded value, or 0 if nothing has been
// recorded yet. The internal sentinel is never exposed.
func (c *Counter) Min() int64 {
	v := c.min.Load()
	if v == math.MaxInt64 {
		return 0
	}
	return v
}

// Max returns the largest recorded value, or 0 if nothing has been
// recorded yet.
func (c *Counter) Max() int64 {
	v := c.max.Load()
	if v == math.MinInt64 {
		return 0
	}
	return v
}

// TimedCounter is a Counter that also accumulates the time spent producing
// each recorded value, for metrics where a byte count carries a latency
// cost (direct and optimized reads, cache block writes).
type TimedCounter struct {
	Counter
	totalNanos atomic.Int64
}

// NewTimedCounter returns a TimedCounter with no observations.
func NewTimedCounter() *TimedCounter {
	t := &TimedCounter{}
	t.min.Store(math.MaxInt64)
	t.max.Store(math.MinInt64)
	return t
}

// Add records one observation together with the elapsed time it took.
// The value fields and the duration total are each updated atomically, but
// not as a single unit relative to concurrent readers.
func (t *TimedCounter) Add(value int64, elapsed time.Duration) {
	t.Counter.Add(value)
	t.totalNanos.Add(elapsed.Nanoseconds())
}

// TotalNanoseconds returns the accumulated duration across all recorded
// values, in nanoseconds.
func (t *TimedCounter) TotalNanoseconds() int64 {
	return t.totalNanos.Load()
}
