/*
Package reader provides CachedReader, a positional reader over a single
remote object that serves data through a local disk cache and records every
access through a stats.Recorder.

Small reads are assembled from fixed-size blocks: blocks already on disk
count as cached bytes, blocks fetched from the blob store count as direct
bytes (and as cached bytes written once stored). Reads at or above the
optimized-read threshold bypass the block cache entirely with one ranged
fetch and count as optimized bytes. Seeks and read contiguity are
classified by the recorder as they happen.
*/
package reader
