package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open when no blob is stored under the key.
var ErrNotExist = errors.New("blob does not exist")

// ObjectClient stores whole blobs under caller-chosen keys. Keys are
// slash-separated relative paths.
type ObjectClient interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (bool, error)
}
