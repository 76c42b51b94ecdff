// Package storage provides temporary and persistent file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations must handle temporary files during processing and
// optionally support object-storage uploads that yield public URLs.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// CleanupAged removes temporary files older than maxAge and returns
	// the number of files removed.
	CleanupAged(ctx context.Context, maxAge time.Duration) (int, error)

	// Upload stores data under key in object storage and returns a
	// time-limited public URL granting read access.
	// Returns ErrObjectStoreNotConfigured when object storage is absent.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
