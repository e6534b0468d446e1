// Package storage defines the remote blob store boundary that cached
// readers fall back to when the local disk cache cannot serve a read.
package storage

import "context"

// Backend is a read-only view of a remote blob store. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Length returns the total size of the object in bytes.
	Length(ctx context.Context, key string) (int64, error)

	// ReadRange fetches length bytes starting at offset. Implementations
	// may return fewer bytes only when the range extends past the end of
	// the object.
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
}
