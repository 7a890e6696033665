// Package storage defines the blob backend interface behind the
// content endpoints. Entry metadata lives in internal/metadata; a
// backend only ever sees opaque content keys.
package storage

import (
	"context"
	"io"
)

// Backend stores file content under opaque keys.
type Backend interface {
	// GetObject retrieves an object with optional range support.
	// offset=0, length=0 returns the whole object.
	GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error)

	// PutObject uploads content under key, replacing any previous
	// object.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes an object. Deleting a missing object is
	// not an error.
	DeleteObject(ctx context.Context, key string) error

	// CopyObject copies srcKey to dstKey.
	CopyObject(ctx context.Context, srcKey, dstKey string) error

	// ObjectExists checks whether key holds an object.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend identifier ("local", "s3").
	Type() string

	// Close releases backend resources.
	Close() error
}
