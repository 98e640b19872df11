// Package storage provides the object-storage collaborator: fetch, publish
// and time-limited signed read URLs for a single bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// VideoContentType is the content type of every published render.
const VideoContentType = "video/mp4"

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is bound to one bucket at construction.
type ObjectStore interface {
	// Get opens the object for reading. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put uploads size bytes from body under key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// PresignGet returns a URL granting read access to key for ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
