package imageproc

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation returns the EXIF orientation tag of a JPEG, or 1 when the
// image has none or it cannot be read.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// orient turns pixels upright for the orientations we honor: 3 is upside
// down, 6 needs a quarter turn clockwise and 8 a quarter turn counter
// clockwise. Mirrored orientations are left alone.
func orient(img image.Image, orientation int) (image.Image, bool) {
	switch orientation {
	case 3:
		return imaging.Rotate180(img), true
	case 6:
		return imaging.Rotate270(img), true
	case 8:
		return imaging.Rotate90(img), true
	default:
		return img, false
	}
}
