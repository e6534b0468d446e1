package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// DefaultSeekThreshold is the boundary between "small" and "large" seeks:
// a seek whose absolute distance exceeds it is counted as large.
const DefaultSeekThreshold = 8 * 1024 * 1024

// Recorder accumulates access-pattern statistics for one logical file
// handle. It is constructed once per handle, shared by every goroutine that
// touches the handle, and never reset.
//
// The Recorder does not measure time itself. Callers read CurrentTimeNanos
// before and after an operation and pass the elapsed duration to the
// timed-add methods.
type Recorder struct {
	fileLength    int64
	seekThreshold int64
	nowNanos      func() int64

	opened atomic.Int64
	closed atomic.Int64

	forwardSmallSeeks  *Counter
	backwardSmallSeeks *Counter
	forwardLargeSeeks  *Counter
	backwardLargeSeeks *Counter

	contiguousReads    *Counter
	nonContiguousReads *Counter

	directBytesRead    *TimedCounter
	optimizedBytesRead *TimedCounter

	cachedBytesRead    *Counter
	cachedBytesWritten *TimedCounter
}

// NewRecorder returns a Recorder with the default seek threshold.
// fileLength is informational only and is never validated against reads.
// nowNanos must be a monotonic clock reading in nanoseconds.
func NewRecorder(fileLength int64, nowNanos func() int64) *Recorder {
	return NewRecorderWithThreshold(fileLength, DefaultSeekThreshold, nowNanos)
}

// NewRecorderWithThreshold returns a Recorder with an explicit boundary
// between small and large seeks, in bytes.
func NewRecorderWithThreshold(fileLength, seekThreshold int64, nowNanos func() int64) *Recorder {
	return &Recorder{
		fileLength:         fileLength,
		seekThreshold:      seekThreshold,
		nowNanos:           nowNanos,
		forwardSmallSeeks:  NewCounter(),
		backwardSmallSeeks: NewCounter(),
		forwardLargeSeeks:  NewCounter(),
		backwardLargeSeeks: NewCounter(),
		contiguousReads:    NewCounter(),
		nonContiguousReads: NewCounter(),
		directBytesRead:    NewTimedCounter(),
		optimizedBytesRead: NewTimedCounter(),
		cachedBytesRead:    NewCounter(),
		cachedBytesWritten: NewTimedCounter(),
	}
}

// CurrentTimeNanos returns the injected time source's current reading.
func (r *Recorder) CurrentTimeNanos() int64 {
	return r.nowNanos()
}

// IncrementOpenCount records that the file handle was opened (or cloned).
func (r *Recorder) IncrementOpenCount() {
	r.opened.Add(1)
}

// IncrementCloseCount records that the file handle was closed.
func (r *Recorder) IncrementCloseCount() {
	r.closed.Add(1)
}

// AddCachedBytesRead records bytes served from the local cache.
func (r *Recorder) AddCachedBytesRead(bytesRead int) {
	r.cachedBytesRead.Add(int64(bytesRead))
}

// AddCachedBytesWritten records bytes stored into the local cache and the
// time it took to store them.
func (r *Recorder) AddCachedBytesWritten(bytesWritten int, elapsed time.Duration) {
	r.cachedBytesWritten.Add(int64(bytesWritten), elapsed)
}

// AddDirectBytesRead records bytes fetched from the blob store on a cache
// miss and the fetch latency.
func (r *Recorder) AddDirectBytesRead(bytesRead int, elapsed time.Duration) {
	r.directBytesRead.Add(int64(bytesRead), elapsed)
}

// AddOptimizedBytesRead records bytes fetched through the fast path that
// bypasses per-block caching, and the fetch latency.
func (r *Recorder) AddOptimizedBytesRead(bytesRead int, elapsed time.Duration) {
	r.optimizedBytesRead.Add(int64(bytesRead), elapsed)
}

// IncrementBytesRead classifies a read as contiguous or not. A read is
// contiguous when its starting position equals the caller-supplied previous
// position; the caller is responsible for passing the position tracked
// before the most recent seek, not an absolute file offset.
func (r *Recorder) IncrementBytesRead(previousPosition, currentPosition int64, bytesRead int) {
	if previousPosition == currentPosition {
		r.contiguousReads.Add(int64(bytesRead))
	} else {
		r.nonContiguousReads.Add(int64(bytesRead))
	}
}

// IncrementSeeks classifies a position change by direction and size and
// records the signed raw distance in the matching seek counter. A zero
// distance is not recorded anywhere.
func (r *Recorder) IncrementSeeks(currentPosition, newPosition int64) {
	delta := newPosition - currentPosition
	if delta == 0 {
		return
	}
	large := r.IsLargeSeek(delta)
	if delta > 0 {
		if large {
			r.forwardLargeSeeks.Add(delta)
		} else {
			r.forwardSmallSeeks.Add(delta)
		}
	} else {
		if large {
			r.backwardLargeSeeks.Add(delta)
		} else {
			r.backwardSmallSeeks.Add(delta)
		}
	}
}

// IsLargeSeek reports whether a seek distance exceeds the threshold.
// math.MinInt64 has no two's-complement absolute value, so that one
// distance is treated as not large instead of overflowing.
func (r *Recorder) IsLargeSeek(delta int64) bool {
	if delta == math.MinInt64 {
		return false
	}
	if delta < 0 {
		delta = -delta
	}
	return delta > r.seekThreshold
}

// FileLength returns the file length supplied at construction.
func (r *Recorder) FileLength() int64 { return r.fileLength }

// SeekThreshold returns the small/large seek boundary in bytes.
func (r *Recorder) SeekThreshold() int64 { return r.seekThreshold }

// Opened returns the number of times the handle was opened.
func (r *Recorder) Opened() int64 { return r.opened.Load() }

// Closed returns the number of times the handle was closed.
func (r *Recorder) Closed() int64 { return r.closed.Load() }

// The aggregate accessors return the live counters, not copies, so repeated
// reads observe ongoing concurrent updates.

func (r *Recorder) ForwardSmallSeeks() *Counter  { return r.forwardSmallSeeks }
func (r *Recorder) BackwardSmallSeeks() *Counter { return r.backwardSmallSeeks }
func (r *Recorder) ForwardLargeSeeks() *Counter  { return r.forwardLargeSeeks }
func (r *Recorder) BackwardLargeSeeks() *Counter { return r.backwardLargeSeeks }

func (r *Recorder) ContiguousReads() *Counter    { return r.contiguousReads }
func (r *Recorder) NonContiguousReads() *Counter { return r.nonContiguousReads }

func (r *Recorder) DirectBytesRead() *TimedCounter    { return r.directBytesRead }
func (r *Recorder) OptimizedBytesRead() *TimedCounter { return r.optimizedBytesRead }

func (r *Recorder) CachedBytesRead() *Counter         { return r.cachedBytesRead }
func (r *Recorder) CachedBytesWritten() *TimedCounter { return r.cachedBytesWritten }
