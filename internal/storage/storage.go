package storage

import (
	"context"
	"io"
)

// Storage persists raw image artifacts and hands back a stable public URL.
// The core only manages the reference lifecycle; the bytes live elsewhere.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}
