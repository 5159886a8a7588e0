package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) by every backend when a key is absent.
var ErrNotFound = errors.New("key not found")

// Backend is the blob store shared by every feature. One implementation is
// chosen at startup and injected into the handlers.
type Backend interface {
	// Put stores data at the given key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader) error

	// Get opens the object at key. Callers close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Exists(ctx context.Context, key string) (bool, error)

	Copy(ctx context.Context, srcKey, dstKey string) error

	// ListWithInfo returns objects with metadata.
	ListWithInfo(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// GetInfo returns metadata for a single object.
	GetInfo(ctx context.Context, key string) (*ObjectInfo, error)
}

// ObjectInfo provides metadata about stored objects.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}
