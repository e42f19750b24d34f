// Package storage is the S3-compatible object store holding archived
// renditions of approved document revisions. Everything streams; nothing
// touches local disk.
package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions define optional parameters for uploading renditions.
// Size should be the exact byte count when known; -1 lets the backend
// buffer and chunk as it supports.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes one archived object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the rendition archive contract. Implementations must be safe
// for concurrent use.
type Storage interface {
	// Put uploads an object under the given key from the provided reader.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader with its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Used to compensate when a transition
	// fails to commit after its rendition was uploaded.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL for downloading the object
	// without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
