// Package archive stores opaque blobs under slash-separated keys, on local
// disk or in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotExist is returned by Read and Delete for a missing key.
var ErrNotExist = errors.New("archive: object does not exist")

// Storage defines the interface for blob storage backends
type Storage interface {
	// Write stores data at the given key, replacing any previous object
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves data from the given key
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns all keys matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given key
	Delete(ctx context.Context, key string) error

	// Exists checks if data exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// CleanKey normalizes key and rejects keys that escape the storage root.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", errors.New("archive: empty key")
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("archive: key escapes storage root: " + key)
	}
	return cleaned, nil
}
