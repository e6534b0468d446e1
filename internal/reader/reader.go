package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blobstats/blobstats/internal/cache"
	"github.com/blobstats/blobstats/internal/stats"
	"github.com/blobstats/blobstats/internal/storage"
)

// Default tuning values, overridable through Options.
const (
	DefaultBlockSize              = 4 * 1024 * 1024
	DefaultOptimizedReadThreshold = 16 * 1024 * 1024
)

// ErrClosed is returned by operations on a closed reader.
var ErrClosed = errors.New("reader is closed")

// Options tunes a CachedReader.
type Options struct {
	// BlockSize is the granularity of cache fills.
	BlockSize int64

	// OptimizedReadThreshold is the read size at or above which the block
	// cache is bypassed with a single ranged fetch.
	OptimizedReadThreshold int64

	// SeekThreshold is the small/large seek boundary passed to the
	// recorder.
	SeekThreshold int64

	// NowNanos overrides the recorder's time source. Defaults to the wall
	// clock; inject a fake in tests.
	NowNanos func() int64

	Logger *slog.Logger
}

// CachedReader reads one object through a disk cache backed by a blob
// store. The file offset is guarded by a mutex; all statistics flow into
// the lock-free Recorder and may be consumed concurrently.
type CachedReader struct {
	backend  storage.Backend
	cache    *cache.DiskCache
	key      string
	length   int64
	recorder *stats.Recorder

	blockSize          int64
	optimizedThreshold int64
	logger             *slog.Logger

	mu          sync.Mutex
	pos         int64
	lastReadEnd int64
	closed      bool
}

// Open creates a reader for the given object key, resolving the object
// length from the backend, and records the open on the new recorder.
func Open(ctx context.Context, backend storage.Backend, diskCache *cache.DiskCache, key string, opts *Options) (*CachedReader, error) {
	if opts == nil {
		opts = &Options{}
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	optimizedThreshold := opts.OptimizedReadThreshold
	if optimizedThreshold <= 0 {
		optimizedThreshold = DefaultOptimizedReadThreshold
	}
	seekThreshold := opts.SeekThreshold
	if seekThreshold <= 0 {
		seekThreshold = stats.DefaultSeekThreshold
	}
	nowNanos := opts.NowNanos
	if nowNanos == nil {
		nowNanos = func() int64 { return time.Now().UnixNano() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	length, err := backend.Length(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve object length: %w", err)
	}

	r := &CachedReader{
		backend:            backend,
		cache:              diskCache,
		key:                key,
		length:             length,
		recorder:           stats.NewRecorderWithThreshold(length, seekThreshold, nowNanos),
		blockSize:          blockSize,
		optimizedThreshold: optimizedThreshold,
		logger:             logger,
	}
	r.recorder.IncrementOpenCount()
	return r, nil
}

// Recorder exposes the live statistics for this reader. Consumers must
// tolerate per-field consistency (see the stats package).
func (r *CachedReader) Recorder() *stats.Recorder {
	return r.recorder
}

// Length returns the object length in bytes.
func (r *CachedReader) Length() int64 {
	return r.length
}

// Read reads from the current offset, advancing it by the number of bytes
// read. Returns io.EOF at end of object.
func (r *CachedReader) Read(ctx context.Context, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if r.pos >= r.length {
		return 0, io.EOF
	}

	n, err := r.readAtLocked(ctx, p, r.pos)
	r.pos += int64(n)
	return n, err
}

// ReadAt reads at an absolute offset without moving the current file
// offset.
func (r *CachedReader) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.length {
		return 0, io.EOF
	}

	return r.readAtLocked(ctx, p, off)
}

// Seek repositions the file offset and records the signed seek distance.
func (r *CachedReader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = r.length + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if newPos < 0 {
		return 0, fmt.Errorf("seek to negative position %d", newPos)
	}
	if newPos > r.length {
		return 0, fmt.Errorf("seek past end of object: %d > %d", newPos, r.length)
	}

	r.recorder.IncrementSeeks(r.pos, newPos)
	r.pos = newPos
	return newPos, nil
}

// Close records the close. The disk cache and backend are shared and stay
// open.
func (r *CachedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.recorder.IncrementCloseCount()
	return nil
}

// readAtLocked serves a read starting at pos and classifies it against the
// end position of the previous read. Caller must hold the mutex.
func (r *CachedReader) readAtLocked(ctx context.Context, p []byte, pos int64) (int, error) {
	want := int64(len(p))
	if remaining := r.length - pos; want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0, nil
	}

	var n int
	var err error
	if want >= r.optimizedThreshold {
		n, err = r.readOptimized(ctx, p[:want], pos)
	} else {
		n, err = r.readBlocks(ctx, p[:want], pos)
	}

	if n > 0 {
		r.recorder.IncrementBytesRead(r.lastReadEnd, pos, n)
		r.lastReadEnd = pos + int64(n)
	}
	return n, err
}

// readOptimized bypasses the block cache with a single ranged fetch.
func (r *CachedReader) readOptimized(ctx context.Context, p []byte, pos int64) (int, error) {
	start := r.recorder.CurrentTimeNanos()
	data, err := r.backend.ReadRange(ctx, r.key, pos, int64(len(p)))
	elapsed := time.Duration(r.recorder.CurrentTimeNanos() - start)
	if err != nil {
		return 0, err
	}

	n := copy(p, data)
	r.recorder.AddOptimizedBytesRead(n, elapsed)
	return n, nil
}

// readBlocks assembles the read from block-aligned cache entries, filling
// missing blocks from the backend.
func (r *CachedReader) readBlocks(ctx context.Context, p []byte, pos int64) (int, error) {
	total := 0
	for total < len(p) && pos < r.length {
		blockStart := (pos / r.blockSize) * r.blockSize
		blockLen := min(r.blockSize, r.length-blockStart)

		data := r.cache.Get(r.key, blockStart, blockLen)
		hit := data != nil
		if !hit {
			var err error
			data, err = r.fetchBlock(ctx, blockStart, blockLen)
			if err != nil {
				return total, err
			}
		}

		n := copy(p[total:], data[pos-blockStart:])
		if hit {
			r.recorder.AddCachedBytesRead(n)
		}
		total += n
		pos += int64(n)
	}
	return total, nil
}

// fetchBlock reads one block from the blob store and stores it in the disk
// cache.
func (r *CachedReader) fetchBlock(ctx context.Context, blockStart, blockLen int64) ([]byte, error) {
	start := r.recorder.CurrentTimeNanos()
	data, err := r.backend.ReadRange(ctx, r.key, blockStart, blockLen)
	elapsed := time.Duration(r.recorder.CurrentTimeNanos() - start)
	if err != nil {
		return nil, err
	}
	r.recorder.AddDirectBytesRead(len(data), elapsed)

	writeStart := r.recorder.CurrentTimeNanos()
	if err := r.cache.Put(r.key, blockStart, data); err != nil {
		r.logger.Warn("failed to cache block", "key", r.key, "offset", blockStart, "error", err)
	} else {
		r.recorder.AddCachedBytesWritten(len(data), time.Duration(r.recorder.CurrentTimeNanos()-writeStart))
	}

	return data, nil
}
