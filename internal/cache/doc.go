/*
Package cache provides the local disk cache that sits between a cached
reader and the remote blob store.

Blocks fetched from the blob store are written to individual files under a
cache directory, with optional gzip compression and SHA-256 checksums, and
tracked in a JSON index that survives restarts. When the directory grows
past its configured maximum size, the least recently accessed blocks are
evicted first.

The cache keeps no hit/miss statistics of its own; access-pattern
accounting belongs to the stats.Recorder owned by the reader.
*/
package cache
