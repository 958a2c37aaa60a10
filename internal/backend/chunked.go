package backend

import (
	"context"
	"fmt"
	"io"

	"filevault/internal/chunk"
	"filevault/internal/store"
)

// ChunkTable is the chunk persistence a ChunkedBackend writes through.
type ChunkTable interface {
	Replace(ctx context.Context, owner string, r io.Reader, chunkSize int) (chunk.Summary, error)
	Read(ctx context.Context, owner string) ([]byte, bool, error)
	ReadRange(ctx context.Context, owner string, offset, length int64) ([]byte, bool, error)
	Has(ctx context.Context, owner string) (bool, error)
	Stat(ctx context.Context, owner string) (*store.Body, error)
}

// ChunkedBackend stores bodies as ordered fixed-size chunks. The primary
// and temporary backends are both ChunkedBackends over different tables.
type ChunkedBackend struct {
	name      string
	table     ChunkTable
	chunkSize int
}

// NewChunked returns a chunked backend. A non-positive chunkSize uses chunk.DefaultSize.
func NewChunked(name string, table ChunkTable, chunkSize int) *ChunkedBackend {
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultSize
	}
	return &ChunkedBackend{name: name, table: table, chunkSize: chunkSize}
}

func (b *ChunkedBackend) Name() string { return b.name }

// ChunkSize returns the chunk size new bodies are split with.
func (b *ChunkedBackend) ChunkSize() int { return b.chunkSize }

func (b *ChunkedBackend) Read(ctx context.Context, id string) ([]byte, bool, error) {
	data, found, err := b.table.Read(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%s read %s: %w", b.name, id, err)
	}
	return data, found, nil
}

func (b *ChunkedBackend) ReadRange(ctx context.Context, id string, offset, length int64) ([]byte, bool, error) {
	data, found, err := b.table.ReadRange(ctx, id, offset, length)
	if err != nil {
		return nil, false, fmt.Errorf("%s read range %s: %w", b.name, id, err)
	}
	return data, found, nil
}

func (b *ChunkedBackend) Write(ctx context.Context, id string, r io.Reader) (WriteResult, error) {
	summary, err := b.table.Replace(ctx, id, r, b.chunkSize)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%s write %s: %w", b.name, id, err)
	}
	return WriteResult{Length: summary.Length, MD5: summary.MD5}, nil
}

func (b *ChunkedBackend) Exists(ctx context.Context, id string) (bool, error) {
	return b.table.Has(ctx, id)
}

// Digest reads length and md5 from the body index.
func (b *ChunkedBackend) Digest(ctx context.Context, id string) (WriteResult, bool, error) {
	body, err := b.table.Stat(ctx, id)
	if err != nil {
		return WriteResult{}, false, fmt.Errorf("%s stat %s: %w", b.name, id, err)
	}
	if body == nil {
		return WriteResult{}, false, nil
	}
	return WriteResult{Length: body.Size, MD5: body.MD5}, true, nil
}
