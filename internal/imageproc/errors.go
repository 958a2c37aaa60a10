package imageproc

import "errors"

var (
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrCorruptImage           = errors.New("corrupt image")
	ErrDimensionsOutOfRange   = errors.New("requested dimensions out of range")
	ErrDimensionsUnavailable  = errors.New("source dimensions unavailable")
)
