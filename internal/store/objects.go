package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filevault/internal/models"
)

const objectColumns = `id, kind, filename, content_type, length, md5, chunk_size, description, owner_type, owner_id,
	is_temp, is_deleted, width, height, no_watermark, body_version, created_at, updated_at`

// ObjectUpdate holds the metadata fields that may change without touching bytes.
type ObjectUpdate struct {
	Filename    *string
	ContentType *string
	Description *string
	OwnerType   *string
	OwnerID     *string
	NoWatermark *bool
	UpdatedAt   time.Time
}

// BodyUpdate describes a freshly written byte body for an existing record.
type BodyUpdate struct {
	Length    int64
	MD5       string
	ChunkSize int
	IsTemp    bool
	Width     int
	Height    int
	UpdatedAt time.Time
}

// ObjectExists reports whether a record with id exists.
func (s *Store) ObjectExists(id string) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM objects WHERE id = ?", id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateObject inserts a new object record.
func (s *Store) CreateObject(ctx context.Context, obj *models.Object) error {
	if obj == nil {
		return fmt.Errorf("object is required")
	}
	if obj.BodyVersion == 0 {
		obj.BodyVersion = 1
	}

	var width, height any
	noWatermark := false
	if obj.Image != nil {
		width, height = obj.Image.Width, obj.Image.Height
		noWatermark = obj.Image.NoWatermark
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (`+objectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obj.ID,
		string(obj.Kind),
		obj.Filename,
		obj.ContentType,
		obj.Length,
		obj.MD5,
		obj.ChunkSize,
		nullIfEmpty(obj.Description),
		nullIfEmpty(obj.OwnerType),
		nullIfEmpty(obj.OwnerID),
		obj.IsTemp,
		obj.IsDeleted,
		width,
		height,
		noWatermark,
		obj.BodyVersion,
		formatTime(obj.CreatedAt),
		formatTime(obj.UpdatedAt),
	)
	return err
}

// GetObject returns an object by id, or nil when it does not exist.
func (s *Store) GetObject(ctx context.Context, id string) (*models.Object, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id = ?`, id)
	return scanObject(row)
}

// UpdateObject updates mutable metadata fields on an object.
func (s *Store) UpdateObject(ctx context.Context, id string, update ObjectUpdate) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}

	set := []string{}
	args := []any{}

	if update.Filename != nil {
		set = append(set, "filename = ?")
		args = append(args, *update.Filename)
	}
	if update.ContentType != nil {
		set = append(set, "content_type = ?")
		args = append(args, *update.ContentType)
	}
	if update.Description != nil {
		set = append(set, "description = ?")
		args = append(args, nullIfEmpty(*update.Description))
	}
	if update.OwnerType != nil {
		set = append(set, "owner_type = ?")
		args = append(args, nullIfEmpty(*update.OwnerType))
	}
	if update.OwnerID != nil {
		set = append(set, "owner_id = ?")
		args = append(args, nullIfEmpty(*update.OwnerID))
	}
	if update.NoWatermark != nil {
		set = append(set, "no_watermark = ?")
		args = append(args, *update.NoWatermark)
	}

	set = append(set, "updated_at = ?")
	args = append(args, formatTime(update.UpdatedAt))

	args = append(args, id)
	query := fmt.Sprintf("UPDATE objects SET %s WHERE id = ?", strings.Join(set, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// ReplaceBody records a new byte body for id and bumps its body version.
// It returns the new version.
func (s *Store) ReplaceBody(ctx context.Context, id string, body BodyUpdate) (int64, error) {
	var width, height any
	if body.Width > 0 && body.Height > 0 {
		width, height = body.Width, body.Height
	}

	var version int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE objects
		SET length = ?, md5 = ?, chunk_size = ?, is_temp = ?,
			width = COALESCE(?, width), height = COALESCE(?, height),
			body_version = body_version + 1, updated_at = ?
		WHERE id = ?
		RETURNING body_version
	`, body.Length, body.MD5, body.ChunkSize, body.IsTemp, width, height, formatTime(body.UpdatedAt), id).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("object %s not found", id)
	}
	return version, err
}

// MarkDeleted sets the soft-delete flag. Bytes and metadata are kept.
func (s *Store) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE objects SET is_deleted = 1, updated_at = ? WHERE id = ?", formatTime(at), id)
	return err
}

// MarkPromoted clears the temp flag only if the body version is still the
// one the caller copied. It reports whether the row was updated.
func (s *Store) MarkPromoted(ctx context.Context, id string, version int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE objects SET is_temp = 0 WHERE id = ? AND body_version = ? AND is_temp = 1", id, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTempObjects returns temp-flagged objects with id greater than afterID, in id order.
func (s *Store) ListTempObjects(ctx context.Context, afterID string, limit int) ([]models.Object, error) {
	return s.queryObjects(ctx, `SELECT `+objectColumns+` FROM objects WHERE is_temp = 1 AND id > ? ORDER BY id LIMIT ?`, afterID, normalizeLimit(limit))
}

// ListObjectsAfter returns objects with id greater than afterID, in id order.
func (s *Store) ListObjectsAfter(ctx context.Context, afterID string, limit int) ([]models.Object, error) {
	return s.queryObjects(ctx, `SELECT `+objectColumns+` FROM objects WHERE id > ? ORDER BY id LIMIT ?`, afterID, normalizeLimit(limit))
}

// ListByOwner returns the objects attached to one owner, oldest first.
func (s *Store) ListByOwner(ctx context.Context, ownerType, ownerID string) ([]models.Object, error) {
	return s.queryObjects(ctx, `SELECT `+objectColumns+` FROM objects WHERE owner_type = ? AND owner_id = ? ORDER BY id`, ownerType, ownerID)
}

// GetCursor returns the last id processed by the named sweep, or "" if it never ran.
func (s *Store) GetCursor(ctx context.Context, name string) (string, error) {
	var lastID string
	err := s.db.QueryRowContext(ctx, "SELECT last_id FROM sweep_cursors WHERE name = ?", name).Scan(&lastID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return lastID, err
}

// SetCursor stores the last id processed by the named sweep.
func (s *Store) SetCursor(ctx context.Context, name, lastID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_cursors (name, last_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET last_id = excluded.last_id, updated_at = excluded.updated_at
	`, name, lastID, formatTime(time.Now()))
	return err
}

// RewindCursors moves every cursor named with prefix that has already
// passed id back to just before it, so the next sweep visits id again.
func (s *Store) RewindCursors(ctx context.Context, prefix, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_cursors
		SET last_id = COALESCE((SELECT MAX(id) FROM objects WHERE id < ?), ''), updated_at = ?
		WHERE substr(name, 1, ?) = ? AND last_id >= ?
	`, id, formatTime(time.Now()), len(prefix), prefix, id)
	return err
}

func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]models.Object, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []models.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			objects = append(objects, *obj)
		}
	}
	return objects, rows.Err()
}

func scanObject(scanner interface {
	Scan(dest ...any) error
}) (*models.Object, error) {
	var obj models.Object
	var kind string
	var description, ownerType, ownerID sql.NullString
	var width, height sql.NullInt64
	var noWatermark bool
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&obj.ID,
		&kind,
		&obj.Filename,
		&obj.ContentType,
		&obj.Length,
		&obj.MD5,
		&obj.ChunkSize,
		&description,
		&ownerType,
		&ownerID,
		&obj.IsTemp,
		&obj.IsDeleted,
		&width,
		&height,
		&noWatermark,
		&obj.BodyVersion,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	parsedKind, err := models.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	obj.Kind = parsedKind
	obj.Description = description.String
	obj.OwnerType = ownerType.String
	obj.OwnerID = ownerID.String
	if obj.Kind == models.KindImage {
		obj.Image = &models.ImageInfo{
			Width:       int(width.Int64),
			Height:      int(height.Int64),
			NoWatermark: noWatermark,
		}
	}

	if obj.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if obj.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &obj, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
