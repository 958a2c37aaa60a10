package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"filevault/internal/chunk"
)

// ErrBodyTooLarge is returned when a body cannot fit in a capped chunk table.
var ErrBodyTooLarge = errors.New("body exceeds chunk store capacity")

// ChunkStore persists chunked bodies in one chunk table plus a body index
// table recording size, digest, chunk size and write time per owner.
type ChunkStore struct {
	db       *sql.DB
	chunks   string
	bodies   string
	capacity int64
}

// Body describes a stored chunked body.
type Body struct {
	Size      int64
	MD5       string
	ChunkSize int
	WrittenAt time.Time
}

// Replace splits r and stores it as the body of owner, discarding any
// previous chunks. The swap happens in a single transaction: readers see
// either the old body or the new one. Capped stores evict the oldest other
// bodies until the total fits.
func (c *ChunkStore) Replace(ctx context.Context, owner string, r io.Reader, chunkSize int) (summary chunk.Summary, err error) {
	if owner == "" {
		return chunk.Summary{}, fmt.Errorf("owner id is required")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return chunk.Summary{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+c.chunks+" WHERE owner_id = ?", owner); err != nil {
		return chunk.Summary{}, err
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO "+c.chunks+" (owner_id, n, data) VALUES (?, ?, ?)")
	if err != nil {
		return chunk.Summary{}, err
	}
	defer insert.Close()

	var written int64
	summary, err = chunk.Each(r, chunkSize, func(ch chunk.Chunk) error {
		written += int64(len(ch.Data))
		if c.capacity > 0 && written > c.capacity {
			return fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.capacity)
		}
		_, err := insert.ExecContext(ctx, owner, ch.Seq, ch.Data)
		return err
	})
	if err != nil {
		return chunk.Summary{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+c.bodies+` (owner_id, size, md5, chunk_size, written_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET size = excluded.size, md5 = excluded.md5, chunk_size = excluded.chunk_size, written_at = excluded.written_at
	`, owner, summary.Length, summary.MD5, chunkSize, time.Now().UnixNano())
	if err != nil {
		return chunk.Summary{}, err
	}

	if c.capacity > 0 {
		if err = c.evict(ctx, tx, owner); err != nil {
			return chunk.Summary{}, fmt.Errorf("evict: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return chunk.Summary{}, err
	}
	return summary, nil
}

func (c *ChunkStore) evict(ctx context.Context, tx *sql.Tx, keep string) error {
	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(SUM(size), 0) FROM "+c.bodies).Scan(&total); err != nil {
		return err
	}
	if total <= c.capacity {
		return nil
	}

	rows, err := tx.QueryContext(ctx, "SELECT owner_id, size FROM "+c.bodies+" WHERE owner_id != ? ORDER BY written_at, rowid", keep)
	if err != nil {
		return err
	}
	var victims []string
	for rows.Next() && total > c.capacity {
		var owner string
		var size int64
		if err := rows.Scan(&owner, &size); err != nil {
			rows.Close()
			return err
		}
		victims = append(victims, owner)
		total -= size
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, owner := range victims {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+c.chunks+" WHERE owner_id = ?", owner); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+c.bodies+" WHERE owner_id = ?", owner); err != nil {
			return err
		}
	}
	return nil
}

// Stat returns the body index entry for owner, or nil when there is none.
func (c *ChunkStore) Stat(ctx context.Context, owner string) (*Body, error) {
	var body Body
	var writtenAt int64
	err := c.db.QueryRowContext(ctx, "SELECT size, md5, chunk_size, written_at FROM "+c.bodies+" WHERE owner_id = ?", owner).
		Scan(&body.Size, &body.MD5, &body.ChunkSize, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	body.WrittenAt = time.Unix(0, writtenAt).UTC()
	return &body, nil
}

// Has reports whether owner has a stored body.
func (c *ChunkStore) Has(ctx context.Context, owner string) (bool, error) {
	body, err := c.Stat(ctx, owner)
	if err != nil {
		return false, err
	}
	return body != nil, nil
}

// Read returns the whole body of owner. The bool is false when no body is stored.
func (c *ChunkStore) Read(ctx context.Context, owner string) ([]byte, bool, error) {
	body, err := c.Stat(ctx, owner)
	if err != nil || body == nil {
		return nil, false, err
	}

	chunks, err := c.loadChunks(ctx, owner, 0, -1)
	if err != nil {
		return nil, false, err
	}
	joined, err := chunk.Join(chunks)
	if err != nil {
		return nil, false, err
	}
	data, err := io.ReadAll(joined)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) != body.Size {
		return nil, false, fmt.Errorf("body %s: expected %d bytes, got %d", owner, body.Size, len(data))
	}
	return data, true, nil
}

// ReadRange returns up to length bytes of owner's body starting at offset,
// loading only the chunks that cover the range.
func (c *ChunkStore) ReadRange(ctx context.Context, owner string, offset, length int64) ([]byte, bool, error) {
	if offset < 0 || length < 0 {
		return nil, false, fmt.Errorf("invalid range %d+%d", offset, length)
	}
	body, err := c.Stat(ctx, owner)
	if err != nil || body == nil {
		return nil, false, err
	}
	if offset >= body.Size || length == 0 {
		return []byte{}, true, nil
	}
	end := offset + length
	if end > body.Size {
		end = body.Size
	}

	cs := int64(body.ChunkSize)
	first := int(offset / cs)
	last := int((end - 1) / cs)
	chunks, err := c.loadChunks(ctx, owner, first, last)
	if err != nil {
		return nil, false, err
	}
	if len(chunks) != last-first+1 {
		return nil, false, fmt.Errorf("%w: body %s missing chunks in [%d, %d]", chunk.ErrChunkGap, owner, first, last)
	}

	out := make([]byte, 0, end-offset)
	for _, ch := range chunks {
		start := int64(ch.Seq) * cs
		lo := max(offset-start, 0)
		hi := min(end-start, int64(len(ch.Data)))
		out = append(out, ch.Data[lo:hi]...)
	}
	return out, true, nil
}

// loadChunks reads chunks with sequence in [first, last]; last < 0 means all.
func (c *ChunkStore) loadChunks(ctx context.Context, owner string, first, last int) ([]chunk.Chunk, error) {
	query := "SELECT n, data FROM " + c.chunks + " WHERE owner_id = ? AND n >= ?"
	args := []any{owner, first}
	if last >= 0 {
		query += " AND n <= ?"
		args = append(args, last)
	}
	query += " ORDER BY n"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		var ch chunk.Chunk
		if err := rows.Scan(&ch.Seq, &ch.Data); err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// TotalSize returns the summed size of all stored bodies.
func (c *ChunkStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := c.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(size), 0) FROM "+c.bodies).Scan(&total)
	return total, err
}
