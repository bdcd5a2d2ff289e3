// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrKeyExists is returned by Upload when the key is already taken and
// overwriting was not requested.
var ErrKeyExists = errors.New("object key already exists")

// UploadOptions controls a single Upload call.
type UploadOptions struct {
	// Overwrite allows replacing an existing object. When false, Upload
	// fails with ErrKeyExists instead of silently replacing the object.
	Overwrite bool
	// OnProgress, when set, receives the transfer percentage in [0,100].
	// Values are non-decreasing; the final value on success is 100.
	OnProgress func(pct int)
}

// Storage is the interface for uploading and retrieving objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts UploadOptions) error
	// Remove deletes the objects identified by keys.
	Remove(ctx context.Context, keys ...string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
