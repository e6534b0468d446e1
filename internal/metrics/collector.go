package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blobstats/blobstats/internal/stats"
)

const namespace = "blobstats"

// FileCollector implements prometheus.Collector over one file's
// stats.Recorder. Register one collector per tracked file; the file label
// keeps series apart.
type FileCollector struct {
	file     string
	recorder *stats.Recorder

	fileLength *prometheus.Desc
	opens      *prometheus.Desc
	closes     *prometheus.Desc

	seeks        *prometheus.Desc
	seekDistance *prometheus.Desc

	reads         *prometheus.Desc
	readBytes     *prometheus.Desc
	readSeconds   *prometheus.Desc
	cacheWrites   *prometheus.Desc
	cacheWritten  *prometheus.Desc
	cacheWriteSec *prometheus.Desc
}

// NewFileCollector creates a collector for the given file name and its
// recorder.
func NewFileCollector(file string, recorder *stats.Recorder) *FileCollector {
	fileLabel := []string{"file"}
	return &FileCollector{
		file:     file,
		recorder: recorder,

		fileLength: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "length_bytes"),
			"Length of the tracked file in bytes",
			fileLabel, nil),
		opens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "opens_total"),
			"Number of times the file handle was opened",
			fileLabel, nil),
		closes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "closes_total"),
			"Number of times the file handle was closed",
			fileLabel, nil),

		seeks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "seeks_total"),
			"Number of seeks by direction and size class",
			[]string{"file", "direction", "size"}, nil),
		seekDistance: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "seek_distance_bytes"),
			"Sum of signed seek distances by direction and size class",
			[]string{"file", "direction", "size"}, nil),

		reads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "reads_total"),
			"Number of read operations by read path and contiguity",
			[]string{"file", "path"}, nil),
		readBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "read_bytes_total"),
			"Bytes read by read path and contiguity",
			[]string{"file", "path"}, nil),
		readSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "read_seconds_total"),
			"Time spent reading by read path",
			[]string{"file", "path"}, nil),

		cacheWrites: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "cache_writes_total"),
			"Number of cache block writes",
			fileLabel, nil),
		cacheWritten: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "cache_write_bytes_total"),
			"Bytes written into the local cache",
			fileLabel, nil),
		cacheWriteSec: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "file", "cache_write_seconds_total"),
			"Time spent writing into the local cache",
			fileLabel, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *FileCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fileLength
	ch <- c.opens
	ch <- c.closes
	ch <- c.seeks
	ch <- c.seekDistance
	ch <- c.reads
	ch <- c.readBytes
	ch <- c.readSeconds
	ch <- c.cacheWrites
	ch <- c.cacheWritten
	ch <- c.cacheWriteSec
}

// Collect implements prometheus.Collector by snapshotting the live
// aggregates at scrape time.
func (c *FileCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.recorder

	ch <- prometheus.MustNewConstMetric(c.fileLength, prometheus.GaugeValue,
		float64(r.FileLength()), c.file)
	ch <- prometheus.MustNewConstMetric(c.opens, prometheus.CounterValue,
		float64(r.Opened()), c.file)
	ch <- prometheus.MustNewConstMetric(c.closes, prometheus.CounterValue,
		float64(r.Closed()), c.file)

	c.collectSeeks(ch, r.ForwardSmallSeeks(), "forward", "small")
	c.collectSeeks(ch, r.BackwardSmallSeeks(), "backward", "small")
	c.collectSeeks(ch, r.ForwardLargeSeeks(), "forward", "large")
	c.collectSeeks(ch, r.BackwardLargeSeeks(), "backward", "large")

	c.collectReads(ch, r.CachedBytesRead(), "cached")
	c.collectReads(ch, r.ContiguousReads(), "contiguous")
	c.collectReads(ch, r.NonContiguousReads(), "non_contiguous")

	c.collectTimedReads(ch, &r.DirectBytesRead().Counter, r.DirectBytesRead().TotalNanoseconds(), "direct")
	c.collectTimedReads(ch, &r.OptimizedBytesRead().Counter, r.OptimizedBytesRead().TotalNanoseconds(), "optimized")

	written := r.CachedBytesWritten()
	ch <- prometheus.MustNewConstMetric(c.cacheWrites, prometheus.CounterValue,
		float64(written.Count()), c.file)
	ch <- prometheus.MustNewConstMetric(c.cacheWritten, prometheus.CounterValue,
		float64(written.Total()), c.file)
	ch <- prometheus.MustNewConstMetric(c.cacheWriteSec, prometheus.CounterValue,
		nanosToSeconds(written.TotalNanoseconds()), c.file)
}

func (c *FileCollector) collectSeeks(ch chan<- prometheus.Metric, counter *stats.Counter, direction, size string) {
	ch <- prometheus.MustNewConstMetric(c.seeks, prometheus.CounterValue,
		float64(counter.Count()), c.file, direction, size)
	// Seek distances are signed, so the sum is a gauge.
	ch <- prometheus.MustNewConstMetric(c.seekDistance, prometheus.GaugeValue,
		float64(counter.Total()), c.file, direction, size)
}

func (c *FileCollector) collectReads(ch chan<- prometheus.Metric, counter *stats.Counter, path string) {
	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue,
		float64(counter.Count()), c.file, path)
	ch <- prometheus.MustNewConstMetric(c.readBytes, prometheus.CounterValue,
		float64(counter.Total()), c.file, path)
}

func (c *FileCollector) collectTimedReads(ch chan<- prometheus.Metric, counter *stats.Counter, nanos int64, path string) {
	c.collectReads(ch, counter, path)
	ch <- prometheus.MustNewConstMetric(c.readSeconds, prometheus.CounterValue,
		nanosToSeconds(nanos), c.file, path)
}

func nanosToSeconds(nanos int64) float64 {
	return float64(nanos) / float64(time.Second)
}
