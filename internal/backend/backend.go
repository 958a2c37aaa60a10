// Package backend holds the storage media object bodies live in and the
// ordered chains that read from and write to them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"filevault/internal/chunk"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrBackendReadExhausted = fmt.Errorf("backend read chain exhausted: %w", ErrNotFound)
	ErrBackendWriteFailed   = errors.New("backend write failed")
	ErrStaleCopy            = errors.New("stale copy")
)

// WriteResult is what a backend measured from the bytes it stored.
type WriteResult struct {
	Length int64
	MD5    string
}

// Backend is one storage medium addressed by object id.
type Backend interface {
	Name() string
	// Read returns the whole body. found is false when the id is absent;
	// err is reserved for I/O failures.
	Read(ctx context.Context, id string) (data []byte, found bool, err error)
	Write(ctx context.Context, id string, r io.Reader) (WriteResult, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// accepts reports whether a copy measured as got is the body want
// describes. A zero want accepts anything; a copy with no recorded md5 is
// judged on length alone.
func (want WriteResult) accepts(got WriteResult) bool {
	if want.isZero() {
		return true
	}
	if got.Length != want.Length {
		return false
	}
	return got.MD5 == "" || want.MD5 == "" || got.MD5 == want.MD5
}

func (want WriteResult) isZero() bool {
	return want.Length == 0 && want.MD5 == ""
}

func measure(data []byte) WriteResult {
	sum := chunk.Sum(data)
	return WriteResult{Length: sum.Length, MD5: sum.MD5}
}

// Digester is implemented by backends that know the length and md5 of a
// stored body without reading it.
type Digester interface {
	Digest(ctx context.Context, id string) (WriteResult, bool, error)
}

// Holds reports whether b has a copy of id that matches want. Backends
// without a Digest are read in full and measured.
func Holds(ctx context.Context, b Backend, id string, want WriteResult) (bool, error) {
	if want.isZero() {
		return b.Exists(ctx, id)
	}
	if d, ok := b.(Digester); ok {
		got, found, err := d.Digest(ctx, id)
		if err != nil || !found {
			return false, err
		}
		return want.accepts(got), nil
	}
	data, found, err := b.Read(ctx, id)
	if err != nil || !found {
		return false, err
	}
	return want.accepts(measure(data)), nil
}

// RangeReader is implemented by backends that can read part of a body
// without loading all of it.
type RangeReader interface {
	ReadRange(ctx context.Context, id string, offset, length int64) ([]byte, bool, error)
}
