/*
Package stats records access-pattern statistics for a single logical file
read through a layered cache (local disk cache backed by a remote blob
store).

A Recorder is attached to one file handle and accumulates open/close counts,
seek distances classified by direction and size, contiguous vs.
non-contiguous read volumes, and byte/time totals for the three read paths
(cache hits, cache-miss direct fetches, and optimized fetches that bypass
per-block caching). The numbers exist so an operator or an adaptive caching
policy can see how a file is actually being read while it is being read.

# Concurrency

Every aggregate is lock-free. Counts and sums are plain atomic adds; running
minima and maxima use compare-and-swap retry loops. No recording operation
ever blocks, and no update is lost, but there is deliberately no snapshot
isolation across fields: a reader that loads Count() and then Total() may
see values from different instants. Consumers (see internal/metrics) must
tolerate that per-field consistency contract; adding a lock here to "fix" it
would change the performance characteristics this package exists to provide.

All values are cumulative since construction. Nothing is ever reset or
removed for the lifetime of the Recorder.
*/
package stats
