package reader

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobstats/blobstats/internal/cache"
)

// fakeBackend serves an in-memory object and counts range fetches.
type fakeBackend struct {
	data       []byte
	rangeCalls atomic.Int64
}

func (f *fakeBackend) Length(ctx context.Context, key string) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *fakeBackend) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	f.rangeCalls.Add(1)
	if offset < 0 || offset >= int64(len(f.data)) {
		return nil, fmt.Errorf("range out of bounds: offset %d", offset)
	}
	end := offset + length
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	return f.data[offset:end], nil
}

func testObject(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newTestReader(t *testing.T, size int) (*CachedReader, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{data: testObject(size)}
	diskCache, err := cache.NewDiskCache(&cache.DiskCacheConfig{
		Directory:    t.TempDir(),
		MaxSize:      1 << 20,
		SyncInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = diskCache.Close() })

	var clock int64
	r, err := Open(context.Background(), backend, diskCache, "test-object", &Options{
		BlockSize:              100,
		OptimizedReadThreshold: 500,
		SeekThreshold:          200,
		NowNanos: func() int64 {
			return atomic.AddInt64(&clock, 1000)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r, backend
}

func TestOpen(t *testing.T) {
	r, _ := newTestReader(t, 1000)

	assert.Equal(t, int64(1000), r.Length())
	assert.Equal(t, int64(1000), r.Recorder().FileLength())
	assert.Equal(t, int64(1), r.Recorder().Opened())
	assert.Equal(t, int64(0), r.Recorder().Closed())
}

func TestRead_CacheMissThenHit(t *testing.T) {
	r, backend := newTestReader(t, 1000)
	rec := r.Recorder()
	ctx := context.Background()

	// First read misses: one 100-byte block fetched, stored, 50 bytes
	// served.
	buf := make([]byte, 50)
	n, err := r.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 50, n)
	assert.Equal(t, testObject(1000)[:50], buf)

	assert.Equal(t, int64(100), rec.DirectBytesRead().Total())
	assert.Positive(t, rec.DirectBytesRead().TotalNanoseconds())
	assert.Equal(t, int64(100), rec.CachedBytesWritten().Total())
	assert.Equal(t, int64(0), rec.CachedBytesRead().Total())
	assert.Equal(t, int64(1), backend.rangeCalls.Load())

	// Second read of the same block is served from disk.
	n, err = r.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 50, n)
	assert.Equal(t, testObject(1000)[50:100], buf)

	assert.Equal(t, int64(50), rec.CachedBytesRead().Total())
	assert.Equal(t, int64(100), rec.DirectBytesRead().Total(), "no second fetch")
	assert.Equal(t, int64(1), backend.rangeCalls.Load())
}

func TestRead_Contiguity(t *testing.T) {
	r, _ := newTestReader(t, 1000)
	rec := r.Recorder()
	ctx := context.Background()

	buf := make([]byte, 50)

	// Reads that start where the previous one ended are contiguous; the
	// very first read starts at the zero tracking position.
	_, err := r.Read(ctx, buf)
	require.NoError(t, err)
	_, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.ContiguousReads().Total())
	assert.Equal(t, int64(0), rec.NonContiguousReads().Total())

	// Seeking makes the next read non-contiguous.
	_, err = r.Seek(300, io.SeekStart)
	require.NoError(t, err)
	_, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.ContiguousReads().Total())
	assert.Equal(t, int64(50), rec.NonContiguousReads().Total())
}

func TestRead_SpansBlocks(t *testing.T) {
	r, backend := newTestReader(t, 1000)
	ctx := context.Background()

	_, err := r.Seek(80, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 40)
	n, err := r.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 40, n)
	assert.Equal(t, testObject(1000)[80:120], buf)

	// Blocks 0-99 and 100-199 were both fetched.
	assert.Equal(t, int64(2), backend.rangeCalls.Load())
	assert.Equal(t, int64(200), r.Recorder().DirectBytesRead().Total())
}

func TestRead_OptimizedPath(t *testing.T) {
	r, backend := newTestReader(t, 1000)
	rec := r.Recorder()
	ctx := context.Background()

	// 600 bytes is past the 500-byte threshold: one ranged fetch, cache
	// bypassed.
	buf := make([]byte, 600)
	n, err := r.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 600, n)
	assert.Equal(t, testObject(1000)[:600], buf)

	assert.Equal(t, int64(600), rec.OptimizedBytesRead().Total())
	assert.Positive(t, rec.OptimizedBytesRead().TotalNanoseconds())
	assert.Equal(t, int64(0), rec.DirectBytesRead().Total())
	assert.Equal(t, int64(0), rec.CachedBytesWritten().Total())
	assert.Equal(t, int64(1), backend.rangeCalls.Load())

	// Re-reading the same range fetches again, nothing was cached.
	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.rangeCalls.Load())
}

func TestSeek_Classification(t *testing.T) {
	r, _ := newTestReader(t, 1000)
	rec := r.Recorder()

	// Threshold for this reader is 200 bytes.
	_, err := r.Seek(150, io.SeekStart) // forward small
	require.NoError(t, err)
	_, err = r.Seek(900, io.SeekStart) // forward large (+750)
	require.NoError(t, err)
	_, err = r.Seek(-50, io.SeekCurrent) // backward small
	require.NoError(t, err)
	_, err = r.Seek(0, io.SeekStart) // backward large (-850)
	require.NoError(t, err)
	_, err = r.Seek(0, io.SeekStart) // zero distance, not recorded
	require.NoError(t, err)

	assert.Equal(t, int64(150), rec.ForwardSmallSeeks().Total())
	assert.Equal(t, int64(750), rec.ForwardLargeSeeks().Total())
	assert.Equal(t, int64(-50), rec.BackwardSmallSeeks().Total())
	assert.Equal(t, int64(-850), rec.BackwardLargeSeeks().Total())
	assert.Equal(t, int64(4),
		rec.ForwardSmallSeeks().Count()+rec.ForwardLargeSeeks().Count()+
			rec.BackwardSmallSeeks().Count()+rec.BackwardLargeSeeks().Count())
}

func TestSeek_Errors(t *testing.T) {
	r, _ := newTestReader(t, 1000)

	_, err := r.Seek(-1, io.SeekStart)
	assert.Error(t, err)

	_, err = r.Seek(1001, io.SeekStart)
	assert.Error(t, err)

	_, err = r.Seek(0, 42)
	assert.Error(t, err)

	// Failed seeks record nothing.
	rec := r.Recorder()
	assert.Equal(t, int64(0),
		rec.ForwardSmallSeeks().Count()+rec.ForwardLargeSeeks().Count()+
			rec.BackwardSmallSeeks().Count()+rec.BackwardLargeSeeks().Count())
}

func TestReadAt_DoesNotMoveOffset(t *testing.T) {
	r, _ := newTestReader(t, 1000)
	ctx := context.Background()

	buf := make([]byte, 20)
	n, err := r.ReadAt(ctx, buf, 500)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	assert.Equal(t, testObject(1000)[500:520], buf)

	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestRead_EOF(t *testing.T) {
	r, _ := newTestReader(t, 100)
	ctx := context.Background()

	buf := make([]byte, 200)
	n, err := r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = r.Read(ctx, buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestClose(t *testing.T) {
	r, _ := newTestReader(t, 100)

	require.NoError(t, r.Close())
	assert.Equal(t, int64(1), r.Recorder().Closed())

	// Idempotent close records only once.
	require.NoError(t, r.Close())
	assert.Equal(t, int64(1), r.Recorder().Closed())

	_, err := r.Read(context.Background(), make([]byte, 10))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrClosed)
}
