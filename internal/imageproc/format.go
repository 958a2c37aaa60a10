package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"filevault/internal/models"
)

// Format is a supported image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Info is what a header probe learns about an image.
type Info struct {
	Format Format
	Size   models.Box
}

// Probe reads the image header and reports its format and size. Formats
// other than JPEG, PNG and GIF are rejected.
func Probe(data []byte) (Info, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupportedImageFormat
		}
		return Info{}, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	switch Format(name) {
	case FormatJPEG, FormatPNG, FormatGIF:
	default:
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedImageFormat, name)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return Info{}, fmt.Errorf("%w: empty canvas", ErrCorruptImage)
	}
	return Info{Format: Format(name), Size: models.Box{Width: cfg.Width, Height: cfg.Height}}, nil
}
