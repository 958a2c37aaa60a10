package objects

import (
	"errors"

	"filevault/internal/backend"
)

var (
	// ErrNotFound covers unknown ids, hidden soft-deleted ids, exhausted
	// read chains and rejected image requests alike.
	ErrNotFound = backend.ErrNotFound

	ErrInvalidArgument     = errors.New("invalid argument")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidID           = errors.New("invalid object id")
	ErrInvalidRange        = errors.New("invalid range")
	ErrMediaTypeNotAllowed = errors.New("media type is not allowed")
	ErrNotImage            = errors.New("object is not an image")
)
