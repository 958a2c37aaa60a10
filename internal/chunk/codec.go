// Package chunk splits byte streams into ordered fixed-size chunks and joins
// them back, computing length and MD5 while it goes.
package chunk

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
)

// DefaultSize is the chunk size used when none is configured (4 MiB).
const DefaultSize = 4 << 20

// EmptyMD5 is the hex MD5 digest of zero bytes.
const EmptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

var (
	ErrInvalidSize = errors.New("chunk size must be positive")
	ErrChunkGap    = errors.New("chunk sequence is not contiguous")
)

// Chunk is one bounded slice of an object body.
type Chunk struct {
	Seq  int
	Data []byte
}

// Summary describes a fully split stream.
type Summary struct {
	Length int64
	MD5    string
	Count  int
}

// Splitter reads a source in chunk-size steps. Seekable sources are rewound
// to their start first and put back at their original position by Close.
type Splitter struct {
	r       io.Reader
	size    int
	digest  hash.Hash
	length  int64
	seq     int
	err     error
	done    bool
	restore func() error
}

// Split prepares a lazy split of r into chunks of at most size bytes.
func Split(r io.Reader, size int) (*Splitter, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if r == nil {
		return nil, fmt.Errorf("chunk source is required")
	}

	s := &Splitter{r: r, size: size, digest: md5.New()}
	if seeker, ok := r.(io.Seeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("save source position: %w", err)
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind source: %w", err)
		}
		s.restore = func() error {
			_, err := seeker.Seek(pos, io.SeekStart)
			return err
		}
	}
	return s, nil
}

// Next returns the next chunk. It returns false once the source is exhausted
// or a read failed; check Err to tell the two apart.
func (s *Splitter) Next() (Chunk, bool) {
	if s.done || s.err != nil {
		return Chunk{}, false
	}

	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == io.EOF:
		s.done = true
		return Chunk{}, false
	case err == io.ErrUnexpectedEOF:
		s.done = true
	case err != nil:
		s.err = err
		return Chunk{}, false
	}

	data := buf[:n]
	s.digest.Write(data)
	s.length += int64(n)
	c := Chunk{Seq: s.seq, Data: data}
	s.seq++
	return c, true
}

// Err returns the read error that stopped the split, if any.
func (s *Splitter) Err() error {
	return s.err
}

// Summary returns the running length, digest and chunk count.
func (s *Splitter) Summary() Summary {
	return Summary{Length: s.length, MD5: hex.EncodeToString(s.digest.Sum(nil)), Count: s.seq}
}

// Close restores the source position of seekable sources.
func (s *Splitter) Close() error {
	if s.restore == nil {
		return nil
	}
	restore := s.restore
	s.restore = nil
	return restore()
}

// Each splits r and calls fn for every chunk in sequence order. The summary
// is only meaningful when the returned error is nil.
func Each(r io.Reader, size int, fn func(Chunk) error) (summary Summary, err error) {
	s, err := Split(r, size)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("restore source position: %w", closeErr)
		}
	}()

	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		if err := fn(c); err != nil {
			return Summary{}, err
		}
	}
	if err := s.Err(); err != nil {
		return Summary{}, fmt.Errorf("read source: %w", err)
	}
	return s.Summary(), nil
}

// Join concatenates chunks in ascending sequence order. The sequence must
// run 0..n-1 without gaps.
func Join(chunks []Chunk) (io.Reader, error) {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	readers := make([]io.Reader, 0, len(sorted))
	for i, c := range sorted {
		if c.Seq != i {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrChunkGap, i, c.Seq)
		}
		readers = append(readers, bytes.NewReader(c.Data))
	}
	return io.MultiReader(readers...), nil
}

// Sum returns the length and digest of an unchunked body. Count is left zero.
func Sum(data []byte) Summary {
	sum := md5.Sum(data)
	return Summary{Length: int64(len(data)), MD5: hex.EncodeToString(sum[:])}
}
