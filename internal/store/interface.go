package store

import (
	"context"
	"time"

	"filevault/internal/models"
)

// ObjectStore abstracts object record storage.
type ObjectStore interface {
	ObjectExists(id string) (bool, error)
	CreateObject(ctx context.Context, obj *models.Object) error
	GetObject(ctx context.Context, id string) (*models.Object, error)
	UpdateObject(ctx context.Context, id string, update ObjectUpdate) error
	ReplaceBody(ctx context.Context, id string, body BodyUpdate) (int64, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	MarkPromoted(ctx context.Context, id string, version int64) (bool, error)
	ListTempObjects(ctx context.Context, afterID string, limit int) ([]models.Object, error)
	ListObjectsAfter(ctx context.Context, afterID string, limit int) ([]models.Object, error)
	ListByOwner(ctx context.Context, ownerType, ownerID string) ([]models.Object, error)
	GetCursor(ctx context.Context, name string) (string, error)
	SetCursor(ctx context.Context, name, lastID string) error
	RewindCursors(ctx context.Context, prefix, id string) error
}

var _ ObjectStore = (*Store)(nil)
