package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Chain is an ordered read list and write list of backends.
type Chain struct {
	name    string
	readers []Backend
	writers []Backend
	logger  *slog.Logger
}

// WriteReport describes a fan-out write. Result comes from the first
// backend that accepted the body.
type WriteReport struct {
	Result  WriteResult
	Written []string
	Failed  map[string]error
}

// NewChain returns a chain. Order matters: reads stop at the first hit.
func NewChain(name string, readers, writers []Backend, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		name:    name,
		readers: readers,
		writers: writers,
		logger:  logger.With("component", "backend_chain", "chain", name),
	}
}

func (c *Chain) Name() string { return c.name }

// Readers returns the read list in order.
func (c *Chain) Readers() []Backend { return c.readers }

// Writers returns the write list in order.
func (c *Chain) Writers() []Backend { return c.writers }

// ReadFirstHit returns the body from the first reader that has id, along
// with that reader's name. Reader I/O errors are logged and skipped. If no
// reader has it the error wraps ErrBackendReadExhausted.
func (c *Chain) ReadFirstHit(ctx context.Context, id string) ([]byte, string, error) {
	return c.ReadVerified(ctx, id, WriteResult{})
}

// ReadVerified is ReadFirstHit restricted to copies matching want. A
// reader holding a different body for id, such as one that missed a
// replacement, is logged and skipped.
func (c *Chain) ReadVerified(ctx context.Context, id string, want WriteResult) ([]byte, string, error) {
	var errs []error
	for _, b := range c.readers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		data, found, err := b.Read(ctx, id)
		if err != nil {
			c.logger.Warn("backend read failed", "backend", b.Name(), "id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if !found {
			continue
		}
		if !want.isZero() {
			if got := measure(data); !want.accepts(got) {
				errs = append(errs, c.stale(b, id, want, got))
				continue
			}
		}
		return data, b.Name(), nil
	}
	return nil, "", exhausted(id, errs)
}

// ReadRange reads part of a body matching want from the first reader that
// has it, using ranged reads where the backend supports them. Ranged reads
// are only trusted on backends that can report a digest.
func (c *Chain) ReadRange(ctx context.Context, id string, offset, length int64, want WriteResult) ([]byte, error) {
	var errs []error
	for _, b := range c.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, found, err := c.readRangeFrom(ctx, b, id, offset, length, want)
		if err != nil {
			if !errors.Is(err, ErrStaleCopy) {
				c.logger.Warn("backend range read failed", "backend", b.Name(), "id", id, "error", err)
			}
			errs = append(errs, err)
			continue
		}
		if found {
			return data, nil
		}
	}
	return nil, exhausted(id, errs)
}

func (c *Chain) readRangeFrom(ctx context.Context, b Backend, id string, offset, length int64, want WriteResult) ([]byte, bool, error) {
	rr, ranged := b.(RangeReader)
	d, digests := b.(Digester)
	if ranged && (digests || want.isZero()) {
		if digests && !want.isZero() {
			got, found, err := d.Digest(ctx, id)
			if err != nil || !found {
				return nil, false, err
			}
			if !want.accepts(got) {
				return nil, false, c.stale(b, id, want, got)
			}
		}
		return rr.ReadRange(ctx, id, offset, length)
	}

	data, found, err := b.Read(ctx, id)
	if err != nil || !found {
		return nil, false, err
	}
	if !want.isZero() {
		if got := measure(data); !want.accepts(got) {
			return nil, false, c.stale(b, id, want, got)
		}
	}
	return sliceRange(data, offset, length), true, nil
}

func (c *Chain) stale(b Backend, id string, want, got WriteResult) error {
	c.logger.Warn("backend copy is stale", "backend", b.Name(), "id", id, "expected_md5", want.MD5, "md5", got.MD5, "expected_length", want.Length, "length", got.Length)
	return fmt.Errorf("%w: %s on %s", ErrStaleCopy, id, b.Name())
}

func exhausted(id string, errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrBackendReadExhausted, id, errors.Join(errs...))
	}
	return fmt.Errorf("%w: %s", ErrBackendReadExhausted, id)
}

// WriteAll writes r to every writer in order, rewinding it before each.
// A failing writer does not stop the others. The call fails only when no
// writer succeeded.
func (c *Chain) WriteAll(ctx context.Context, id string, r io.ReadSeeker) (WriteReport, error) {
	return c.writeTo(ctx, id, r, c.writers)
}

// WriteMissing writes r only to the writers that do not already hold a
// copy matching want. An empty report with a nil error means every writer
// had it.
func (c *Chain) WriteMissing(ctx context.Context, id string, r io.ReadSeeker, want WriteResult) (WriteReport, error) {
	var missing []Backend
	for _, b := range c.writers {
		ok, err := Holds(ctx, b, id, want)
		if err != nil {
			c.logger.Warn("backend exists check failed", "backend", b.Name(), "id", id, "error", err)
		}
		if err != nil || !ok {
			missing = append(missing, b)
		}
	}
	if len(missing) == 0 {
		return WriteReport{}, nil
	}
	return c.writeTo(ctx, id, r, missing)
}

func (c *Chain) writeTo(ctx context.Context, id string, r io.ReadSeeker, writers []Backend) (WriteReport, error) {
	if len(writers) == 0 {
		return WriteReport{}, fmt.Errorf("%w: chain %s has no writers", ErrBackendWriteFailed, c.name)
	}

	report := WriteReport{Failed: map[string]error{}}
	var errs []error
	for _, b := range writers {
		if err := ctx.Err(); err != nil {
			return WriteReport{}, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return WriteReport{}, fmt.Errorf("rewind source: %w", err)
		}
		result, err := b.Write(ctx, id, r)
		if err != nil {
			c.logger.Warn("backend write failed", "backend", b.Name(), "id", id, "error", err)
			report.Failed[b.Name()] = err
			errs = append(errs, err)
			continue
		}
		if len(report.Written) == 0 {
			report.Result = result
		}
		report.Written = append(report.Written, b.Name())
	}

	if len(report.Written) == 0 {
		return WriteReport{}, fmt.Errorf("%w: %s: %w", ErrBackendWriteFailed, id, errors.Join(errs...))
	}
	return report, nil
}

func sliceRange(data []byte, offset, length int64) []byte {
	size := int64(len(data))
	if offset < 0 || offset >= size || length <= 0 {
		return []byte{}
	}
	end := min(offset+length, size)
	return data[offset:end]
}
